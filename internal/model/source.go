package model

import (
	"errors"
	"time"
)

// Source errors.
var (
	ErrEmptySourceID  = errors.New("source id cannot be empty")
	ErrSourceExists   = errors.New("a source with this id already exists")
	ErrSourceNotFound = errors.New("source not found")
)

// Source is a message source an application shows under its menu entry,
// e.g. a chat room or a mailbox. Only one of Count, Time and String is
// meaningful at a time.
type Source struct {
	ID             string `json:"id" yaml:"id"`
	Label          string `json:"label" yaml:"label"`
	Icon           string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Count          uint32 `json:"count,omitempty" yaml:"count,omitempty"`
	Time           int64  `json:"time,omitempty" yaml:"time,omitempty"` // unix microseconds
	String         string `json:"string,omitempty" yaml:"string,omitempty"`
	DrawsAttention bool   `json:"draws_attention,omitempty" yaml:"draws_attention,omitempty"`
}

// TimeValue returns the source time as a time.Time.
func (s *Source) TimeValue() time.Time {
	return time.UnixMicro(s.Time)
}

// SourceList is an ordered set of sources keyed by id. It is not safe for
// concurrent use.
type SourceList struct {
	items []Source
}

// NewSourceList creates an empty list.
func NewSourceList() *SourceList {
	return &SourceList{items: make([]Source, 0)}
}

// Len returns the number of sources.
func (l *SourceList) Len() int {
	return len(l.items)
}

// index returns the position of id or -1.
func (l *SourceList) index(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Has reports whether a source with id exists.
func (l *SourceList) Has(id string) bool {
	return l.index(id) >= 0
}

// Get returns a copy of the source with id.
func (l *SourceList) Get(id string) (Source, bool) {
	i := l.index(id)
	if i < 0 {
		return Source{}, false
	}
	return l.items[i], true
}

// Insert adds s at position. A negative position or one past the end appends.
// It returns the position the source ended up at.
func (l *SourceList) Insert(position int, s Source) (int, error) {
	if s.ID == "" {
		return 0, ErrEmptySourceID
	}
	if l.Has(s.ID) {
		return 0, ErrSourceExists
	}
	if position < 0 || position > len(l.items) {
		position = len(l.items)
	}
	l.items = append(l.items, Source{})
	copy(l.items[position+1:], l.items[position:])
	l.items[position] = s
	return position, nil
}

// Remove deletes the source with id and returns it.
func (l *SourceList) Remove(id string) (Source, error) {
	i := l.index(id)
	if i < 0 {
		return Source{}, ErrSourceNotFound
	}
	removed := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	return removed, nil
}

// Update applies fn to the source with id and returns the result.
func (l *SourceList) Update(id string, fn func(*Source)) (Source, error) {
	i := l.index(id)
	if i < 0 {
		return Source{}, ErrSourceNotFound
	}
	fn(&l.items[i])
	return l.items[i], nil
}

// All returns a copy of the sources in order.
func (l *SourceList) All() []Source {
	out := make([]Source, len(l.items))
	copy(out, l.items)
	return out
}

// IDs returns the source ids in order.
func (l *SourceList) IDs() []string {
	ids := make([]string, len(l.items))
	for i := range l.items {
		ids[i] = l.items[i].ID
	}
	return ids
}
