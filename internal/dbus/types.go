package dbus

import (
	"errors"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/msgmenu/internal/model"
	"github.com/jmylchreest/msgmenu/internal/registry"
)

const (
	// BusName is the well-known name the broker claims.
	BusName = "com.canonical.indicator.messages"
	// ServicePath is the broker object path.
	ServicePath = dbus.ObjectPath("/com/canonical/indicator/messages/service")
	// ServiceInterface is the broker interface name.
	ServiceInterface = "com.canonical.indicator.messages.service"
	// ApplicationInterface is the interface each application exports at its menu path.
	ApplicationInterface = "com.canonical.indicator.messages.application"
)

// D-Bus error names returned by the broker.
const (
	ErrNameNotRegistered = "com.canonical.indicator.messages.Error.NotRegistered"
	ErrNameInvalidStatus = "com.canonical.indicator.messages.Error.InvalidStatus"
	ErrNameInvalidArgs   = "com.canonical.indicator.messages.Error.InvalidArgs"
	ErrNameUnknownSource = "com.canonical.indicator.messages.Error.UnknownSource"
)

// ApplicationInfo is the wire form of a registration record: (sossbx).
type ApplicationInfo struct {
	ID           string
	MenuPath     dbus.ObjectPath
	Owner        string
	Status       string
	StatusSet    bool
	RegisteredAt int64 // unix seconds
}

// NewApplicationInfo converts a registration record to its wire form.
func NewApplicationInfo(app model.Application) ApplicationInfo {
	return ApplicationInfo{
		ID:           app.ID,
		MenuPath:     dbus.ObjectPath(app.MenuPath),
		Owner:        app.Owner,
		Status:       app.Status.String(),
		StatusSet:    app.StatusSet,
		RegisteredAt: app.RegisteredAt.Unix(),
	}
}

// Application converts the wire form back to a record. The token is not
// carried on the wire and stays empty.
func (i ApplicationInfo) Application() model.Application {
	status, err := model.ParseStatus(i.Status)
	if err != nil {
		status = model.StatusAvailable
	}
	registered := time.Unix(i.RegisteredAt, 0)
	return model.Application{
		ID:           i.ID,
		MenuPath:     string(i.MenuPath),
		Owner:        i.Owner,
		Status:       status,
		StatusSet:    i.StatusSet,
		RegisteredAt: registered,
		UpdatedAt:    registered,
	}
}

// SourceInfo is the wire form of a message source: (sssuxsb).
type SourceInfo struct {
	ID             string
	Label          string
	Icon           string
	Count          uint32
	Time           int64
	String         string
	DrawsAttention bool
}

// NewSourceInfo converts a source to its wire form.
func NewSourceInfo(s model.Source) SourceInfo {
	return SourceInfo{
		ID:             s.ID,
		Label:          s.Label,
		Icon:           s.Icon,
		Count:          s.Count,
		Time:           s.Time,
		String:         s.String,
		DrawsAttention: s.DrawsAttention,
	}
}

// Source converts the wire form back to a source.
func (i SourceInfo) Source() model.Source {
	return model.Source{
		ID:             i.ID,
		Label:          i.Label,
		Icon:           i.Icon,
		Count:          i.Count,
		Time:           i.Time,
		String:         i.String,
		DrawsAttention: i.DrawsAttention,
	}
}

// toDBusError maps domain errors onto broker error names.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	body := []interface{}{err.Error()}
	switch {
	case errors.Is(err, registry.ErrNotRegistered):
		return dbus.NewError(ErrNameNotRegistered, body)
	case errors.Is(err, model.ErrInvalidStatus):
		return dbus.NewError(ErrNameInvalidStatus, body)
	case errors.Is(err, model.ErrEmptyAppID):
		return dbus.NewError(ErrNameInvalidArgs, body)
	case errors.Is(err, model.ErrSourceNotFound):
		return dbus.NewError(ErrNameUnknownSource, body)
	default:
		return dbus.MakeFailedError(err)
	}
}
