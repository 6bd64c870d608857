// Package model defines the core data structures for msgmenu.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the chat presence an application reports to the messaging menu.
type Status int

// Presence values, in the order the messaging menu lists them.
const (
	StatusAvailable Status = iota
	StatusAway
	StatusBusy
	StatusInvisible
	StatusOffline
)

// StatusNames maps presence values to their wire representation.
var StatusNames = map[Status]string{
	StatusAvailable: "available",
	StatusAway:      "away",
	StatusBusy:      "busy",
	StatusInvisible: "invisible",
	StatusOffline:   "offline",
}

// ErrInvalidStatus is returned for presence values outside the known set.
var ErrInvalidStatus = errors.New("status must be one of available, away, busy, invisible, offline")

// String returns the lowercase wire form of the status.
func (s Status) String() string {
	if name, ok := StatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether s is one of the known presence values.
func (s Status) Valid() bool {
	_, ok := StatusNames[s]
	return ok
}

// ParseStatus converts a wire string into a Status.
// Matching is case-insensitive; surrounding whitespace is ignored.
func ParseStatus(s string) (Status, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for status, n := range StatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// AllStatuses returns every presence value in menu order.
func AllStatuses() []Status {
	return []Status{StatusAvailable, StatusAway, StatusBusy, StatusInvisible, StatusOffline}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidStatus
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
