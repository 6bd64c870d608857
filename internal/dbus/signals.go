package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/msgmenu/internal/registry"
)

// Broker signal members.
const (
	SignalStatusChanged      = "StatusChanged"
	SignalApplicationAdded   = "ApplicationAdded"
	SignalApplicationRemoved = "ApplicationRemoved"
)

// signalledChanges are the registry changes signalFor turns into signals.
var signalledChanges = []registry.ChangeType{
	registry.ChangeTypeAdded,
	registry.ChangeTypeRemoved,
	registry.ChangeTypeGlobalStatus,
}

// signalFor maps a registry change to the broker signal announcing it.
// Refreshes and per-application status reports are not broadcast.
func signalFor(ev registry.ChangeEvent) (string, []interface{}, bool) {
	switch ev.Type {
	case registry.ChangeTypeAdded:
		return SignalApplicationAdded, []interface{}{ev.AppID}, true
	case registry.ChangeTypeRemoved:
		return SignalApplicationRemoved, []interface{}{ev.AppID, string(ev.Reason)}, true
	case registry.ChangeTypeGlobalStatus:
		return SignalStatusChanged, []interface{}{ev.Status.String()}, true
	default:
		return "", nil, false
	}
}

func (s *BrokerServer) emit(member string, args ...interface{}) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}
	if err := s.conn.Emit(ServicePath, ServiceInterface+"."+member, args...); err != nil {
		return fmt.Errorf("failed to emit %s signal: %w", member, err)
	}
	s.logger.Debug("emitted signal", "signal", member, "args", args)
	return nil
}

// Connection returns the underlying D-Bus connection.
func (s *BrokerServer) Connection() *dbus.Conn {
	return s.conn
}
