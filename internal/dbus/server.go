package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/msgmenu/internal/model"
	"github.com/jmylchreest/msgmenu/internal/registry"
)

// BrokerServer implements the com.canonical.indicator.messages.service
// interface on top of a registry.
type BrokerServer struct {
	conn     *dbus.Conn
	logger   *slog.Logger
	registry *registry.Registry

	busName string
	replace bool

	mu      sync.RWMutex
	running bool
	events  <-chan registry.ChangeEvent
	doneCh  chan struct{}
}

// NewBrokerServer creates a BrokerServer backed by reg.
func NewBrokerServer(reg *registry.Registry, logger *slog.Logger) *BrokerServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrokerServer{
		logger:   logger,
		registry: reg,
		busName:  BusName,
	}
}

// SetBusName overrides the well-known name claimed by Start.
func (s *BrokerServer) SetBusName(name string) {
	if name != "" {
		s.busName = name
	}
}

// SetReplace makes Start take the name over from a running broker.
func (s *BrokerServer) SetReplace(replace bool) {
	s.replace = replace
}

// Start exports the broker object on conn and claims the bus name.
// Registry changes are re-emitted as D-Bus signals until Stop.
func (s *BrokerServer) Start(conn *dbus.Conn) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	if err := conn.Export(s, ServicePath, ServiceInterface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(ServicePath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    ServiceInterface,
				Methods: serviceMethods(),
				Signals: serviceSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ServicePath,
		introspectInterface); err != nil {
		unexport(conn)
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	flags := dbus.NameFlagDoNotQueue | dbus.NameFlagAllowReplacement
	if s.replace {
		flags |= dbus.NameFlagReplaceExisting
	}
	reply, err := conn.RequestName(s.busName, flags)
	if err != nil {
		unexport(conn)
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		unexport(conn)
		return fmt.Errorf("bus name %s already taken", s.busName)
	}

	s.mu.Lock()
	s.conn = conn
	s.running = true
	s.events = s.registry.Subscribe(signalledChanges...)
	s.doneCh = make(chan struct{})
	go s.forward(s.events, s.doneCh)
	s.mu.Unlock()

	s.logger.Info("messaging menu broker started", "name", s.busName, "path", ServicePath)
	return nil
}

// Stop releases the bus name and stops emitting signals. The connection is
// left open for the caller to close.
func (s *BrokerServer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	events, done := s.events, s.doneCh
	s.mu.Unlock()

	s.registry.Unsubscribe(events)
	<-done

	if _, err := s.conn.ReleaseName(s.busName); err != nil {
		s.logger.Warn("failed to release bus name", "error", err)
	}
	unexport(s.conn)

	s.logger.Info("messaging menu broker stopped")
	return nil
}

const introspectInterface = "org.freedesktop.DBus.Introspectable"

// unexport removes both broker interfaces from conn.
func unexport(conn *dbus.Conn) {
	_ = conn.Export(nil, ServicePath, ServiceInterface)
	_ = conn.Export(nil, ServicePath, introspectInterface)
}

// forward turns registry changes into broker signals.
func (s *BrokerServer) forward(events <-chan registry.ChangeEvent, done chan struct{}) {
	defer close(done)
	for ev := range events {
		member, args, ok := signalFor(ev)
		if !ok {
			continue
		}
		if err := s.emit(member, args...); err != nil {
			s.logger.Warn("failed to emit signal", "signal", member, "error", err)
		}
	}
}

// RegisterApplication records the caller as the owner of appID.
// D-Bus method: RegisterApplication(so)
func (s *BrokerServer) RegisterApplication(sender dbus.Sender, appID string, menuPath dbus.ObjectPath) *dbus.Error {
	app, added, err := s.registry.Register(appID, string(menuPath), string(sender))
	if err != nil {
		s.logger.Debug("RegisterApplication rejected", "app_id", appID, "error", err)
		return toDBusError(err)
	}
	s.logger.Debug("RegisterApplication called",
		"app_id", appID,
		"menu_path", app.MenuPath,
		"sender", sender,
		"added", added,
	)
	return nil
}

// UnregisterApplication removes appID because it no longer wants to be listed.
// D-Bus method: UnregisterApplication(s)
func (s *BrokerServer) UnregisterApplication(sender dbus.Sender, appID string) *dbus.Error {
	s.logger.Debug("UnregisterApplication called", "app_id", appID, "sender", sender)
	if _, err := s.registry.Unregister(appID); err != nil {
		return toDBusError(err)
	}
	return nil
}

// ApplicationStoppedRunning removes appID because its process is exiting.
// An unknown appID is not an error since a stopping application may never
// have registered.
// D-Bus method: ApplicationStoppedRunning(s)
func (s *BrokerServer) ApplicationStoppedRunning(sender dbus.Sender, appID string) *dbus.Error {
	s.logger.Debug("ApplicationStoppedRunning called", "app_id", appID, "sender", sender)
	if _, err := s.registry.StoppedRunning(appID); err != nil && !errors.Is(err, registry.ErrNotRegistered) {
		return toDBusError(err)
	}
	return nil
}

// SetStatus records the status an application reports.
// D-Bus method: SetStatus(ss)
func (s *BrokerServer) SetStatus(sender dbus.Sender, appID string, status string) *dbus.Error {
	s.logger.Debug("SetStatus called", "app_id", appID, "status", status, "sender", sender)
	parsed, err := model.ParseStatus(status)
	if err != nil {
		return toDBusError(err)
	}
	return toDBusError(s.registry.SetStatus(appID, parsed))
}

// ChangeStatus sets the global status and broadcasts it to applications.
// D-Bus method: ChangeStatus(s)
func (s *BrokerServer) ChangeStatus(status string) *dbus.Error {
	parsed, err := model.ParseStatus(status)
	if err != nil {
		return toDBusError(err)
	}
	changed, err := s.registry.SetGlobalStatus(parsed)
	if err != nil {
		return toDBusError(err)
	}
	s.logger.Debug("ChangeStatus called", "status", parsed, "changed", changed)
	return nil
}

// GetStatus returns the global status.
// D-Bus method: GetStatus() -> s
func (s *BrokerServer) GetStatus() (string, *dbus.Error) {
	return s.registry.GlobalStatus().String(), nil
}

// ListApplications returns every registration in registration order.
// D-Bus method: ListApplications() -> a(sossbx)
func (s *BrokerServer) ListApplications() ([]ApplicationInfo, *dbus.Error) {
	apps := s.registry.List()
	infos := make([]ApplicationInfo, len(apps))
	for i, app := range apps {
		infos[i] = NewApplicationInfo(app)
	}
	return infos, nil
}

// Registry returns the registry backing the server.
func (s *BrokerServer) Registry() *registry.Registry {
	return s.registry
}

// serviceMethods returns the D-Bus method introspection data.
func serviceMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "RegisterApplication",
			Args: []introspect.Arg{
				{Name: "desktop_id", Type: "s", Direction: "in"},
				{Name: "menu_path", Type: "o", Direction: "in"},
			},
		},
		{
			Name: "UnregisterApplication",
			Args: []introspect.Arg{
				{Name: "desktop_id", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "ApplicationStoppedRunning",
			Args: []introspect.Arg{
				{Name: "desktop_id", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "SetStatus",
			Args: []introspect.Arg{
				{Name: "desktop_id", Type: "s", Direction: "in"},
				{Name: "status", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "ChangeStatus",
			Args: []introspect.Arg{
				{Name: "status", Type: "s", Direction: "in"},
			},
		},
		{
			Name: "GetStatus",
			Args: []introspect.Arg{
				{Name: "status", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "ListApplications",
			Args: []introspect.Arg{
				{Name: "applications", Type: "a(sossbx)", Direction: "out"},
			},
		},
	}
}

// serviceSignals returns the D-Bus signal introspection data.
func serviceSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "StatusChanged",
			Args: []introspect.Arg{
				{Name: "status", Type: "s"},
			},
		},
		{
			Name: "ApplicationAdded",
			Args: []introspect.Arg{
				{Name: "desktop_id", Type: "s"},
			},
		},
		{
			Name: "ApplicationRemoved",
			Args: []introspect.Arg{
				{Name: "desktop_id", Type: "s"},
				{Name: "reason", Type: "s"},
			},
		},
	}
}
