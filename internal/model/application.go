package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ApplicationPathPrefix is the object path namespace for per-application objects.
const ApplicationPathPrefix = "/com/canonical/indicator/messages/"

// Validation errors.
var (
	ErrEmptyAppID    = errors.New("application id cannot be empty")
	ErrEmptyToken    = errors.New("registration token cannot be empty")
	ErrEmptyMenuPath = errors.New("menu path cannot be empty")
)

// RemovalReason records why a registration ended.
type RemovalReason string

const (
	// RemovalUnregistered means the application called UnregisterApplication.
	RemovalUnregistered RemovalReason = "unregistered"
	// RemovalStopped means the client handle was released (ApplicationStoppedRunning).
	RemovalStopped RemovalReason = "stopped"
	// RemovalVanished means the peer left the bus without saying goodbye.
	RemovalVanished RemovalReason = "vanished"
)

// Application is the broker-side registration record for one application.
type Application struct {
	Token        string    `json:"token" yaml:"token"`
	ID           string    `json:"id" yaml:"id"`
	MenuPath     string    `json:"menu_path" yaml:"menu_path"`
	Owner        string    `json:"owner,omitempty" yaml:"owner,omitempty"`
	Status       Status    `json:"status" yaml:"status"`
	StatusSet    bool      `json:"status_set" yaml:"status_set"`
	RegisteredAt time.Time `json:"registered_at" yaml:"registered_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewApplication creates a registration record with a fresh ULID token.
func NewApplication(id, menuPath, owner string) (*Application, error) {
	now := time.Now()
	token, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	app := &Application{
		Token:        token.String(),
		ID:           id,
		MenuPath:     menuPath,
		Owner:        owner,
		Status:       StatusAvailable,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

// Validate checks that the record has all required fields.
func (a *Application) Validate() error {
	if a.Token == "" {
		return ErrEmptyToken
	}
	if err := ValidateAppID(a.ID); err != nil {
		return err
	}
	if a.MenuPath == "" {
		return ErrEmptyMenuPath
	}
	if !a.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Clone returns a copy of the record.
func (a *Application) Clone() *Application {
	clone := *a
	return &clone
}

// ValidateAppID checks an application identity.
func ValidateAppID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyAppID
	}
	return nil
}

// ApplicationPath returns the object path an application exports its
// sources on. Every byte outside [A-Za-z/] in the desktop id becomes '_'.
func ApplicationPath(appID string) string {
	var sb strings.Builder
	sb.Grow(len(ApplicationPathPrefix) + len(appID))
	sb.WriteString(ApplicationPathPrefix)
	for i := 0; i < len(appID); i++ {
		c := appID[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '/':
			sb.WriteByte(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
