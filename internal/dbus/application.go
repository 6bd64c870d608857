package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// Application signal members.
const (
	SignalSourceAdded   = "SourceAdded"
	SignalSourceChanged = "SourceChanged"
	SignalSourceRemoved = "SourceRemoved"
)

// SourceProvider owns an application's message sources.
type SourceProvider interface {
	Sources() []model.Source
	ActivateSource(id string) error
	DismissSources(ids []string) error
}

// ApplicationObject exports an application's message sources at its menu
// path and announces source changes as signals.
type ApplicationObject struct {
	conn   *dbus.Conn
	path   dbus.ObjectPath
	logger *slog.Logger

	mu       sync.RWMutex
	provider SourceProvider
	exported bool
}

// NewApplicationObject creates an object for the menu path. conn may be nil,
// in which case signals are dropped.
func NewApplicationObject(conn *dbus.Conn, menuPath string, logger *slog.Logger) *ApplicationObject {
	if logger == nil {
		logger = slog.Default()
	}
	return &ApplicationObject{
		conn:   conn,
		path:   dbus.ObjectPath(menuPath),
		logger: logger,
	}
}

// SetProvider sets the source owner answering bus calls.
func (o *ApplicationObject) SetProvider(p SourceProvider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.provider = p
}

// Path returns the exported object path.
func (o *ApplicationObject) Path() dbus.ObjectPath {
	return o.path
}

// Export makes the object callable on the bus.
func (o *ApplicationObject) Export() error {
	if o.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}
	if !o.path.IsValid() {
		return fmt.Errorf("invalid object path %q", o.path)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.exported {
		return nil
	}

	if err := o.conn.Export(o, o.path, ApplicationInterface); err != nil {
		return fmt.Errorf("failed to export application object: %w", err)
	}
	node := &introspect.Node{
		Name: string(o.path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    ApplicationInterface,
				Methods: applicationMethods(),
				Signals: applicationSignals(),
			},
		},
	}
	if err := o.conn.Export(introspect.NewIntrospectable(node), o.path,
		introspectInterface); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	o.exported = true
	o.logger.Debug("application object exported", "path", o.path)
	return nil
}

// Unexport removes the object from the bus.
func (o *ApplicationObject) Unexport() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.exported {
		return
	}
	_ = o.conn.Export(nil, o.path, ApplicationInterface)
	_ = o.conn.Export(nil, o.path, introspectInterface)
	o.exported = false
}

// ListSources returns the sources in menu order.
// D-Bus method: ListSources() -> a(sssuxsb)
func (o *ApplicationObject) ListSources() ([]SourceInfo, *dbus.Error) {
	p := o.currentProvider()
	if p == nil {
		return []SourceInfo{}, nil
	}
	sources := p.Sources()
	infos := make([]SourceInfo, len(sources))
	for i, s := range sources {
		infos[i] = NewSourceInfo(s)
	}
	return infos, nil
}

// ActivateSource is called by the menu when the user picks a source.
// D-Bus method: ActivateSource(s)
func (o *ApplicationObject) ActivateSource(id string) *dbus.Error {
	o.logger.Debug("ActivateSource called", "path", o.path, "source_id", id)
	p := o.currentProvider()
	if p == nil {
		return toDBusError(model.ErrSourceNotFound)
	}
	return toDBusError(p.ActivateSource(id))
}

// Dismiss is called by the menu when the user clears sources. Messages are
// not carried and their ids are ignored.
// D-Bus method: Dismiss(asas)
func (o *ApplicationObject) Dismiss(sourceIDs []string, messageIDs []string) *dbus.Error {
	o.logger.Debug("Dismiss called", "path", o.path, "sources", sourceIDs, "messages", len(messageIDs))
	p := o.currentProvider()
	if p == nil {
		return nil
	}
	return toDBusError(p.DismissSources(sourceIDs))
}

// SourceAdded announces a new source at position.
func (o *ApplicationObject) SourceAdded(position int, source model.Source) {
	o.emit(SignalSourceAdded, uint32(position), NewSourceInfo(source))
}

// SourceChanged announces an updated source.
func (o *ApplicationObject) SourceChanged(source model.Source) {
	o.emit(SignalSourceChanged, NewSourceInfo(source))
}

// SourceRemoved announces a removed source.
func (o *ApplicationObject) SourceRemoved(id string) {
	o.emit(SignalSourceRemoved, id)
}

func (o *ApplicationObject) currentProvider() SourceProvider {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.provider
}

func (o *ApplicationObject) emit(member string, args ...interface{}) {
	if o.conn == nil {
		o.logger.Debug("dropping signal without connection", "signal", member, "path", o.path)
		return
	}
	if err := o.conn.Emit(o.path, ApplicationInterface+"."+member, args...); err != nil {
		o.logger.Warn("failed to emit signal", "signal", member, "path", o.path, "error", err)
	}
}

func applicationMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "ListSources",
			Args: []introspect.Arg{
				{Name: "sources", Type: "a(sssuxsb)", Direction: "out"},
			},
		},
		{
			Name: "ActivateSource",
			Args: []introspect.Arg{
				{Name: "source_id", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "Dismiss",
			Args: []introspect.Arg{
				{Name: "sources", Type: "as", Direction: "in"},
				{Name: "messages", Type: "as", Direction: "in"},
			},
		},
	}
}

func applicationSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "SourceAdded",
			Args: []introspect.Arg{
				{Name: "position", Type: "u"},
				{Name: "source", Type: "(sssuxsb)"},
			},
		},
		{
			Name: "SourceChanged",
			Args: []introspect.Arg{
				{Name: "source", Type: "(sssuxsb)"},
			},
		},
		{
			Name: "SourceRemoved",
			Args: []introspect.Arg{
				{Name: "source_id", Type: "s"},
			},
		},
	}
}
