package dbus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

// TrafficKind tells calls and signals apart.
type TrafficKind string

const (
	TrafficCall   TrafficKind = "call"
	TrafficSignal TrafficKind = "signal"
)

// TrafficEvent is one observed broker message.
type TrafficEvent struct {
	Time   time.Time
	Kind   TrafficKind
	Member string
	Sender string
	Path   dbus.ObjectPath
	Args   []string
}

// TrafficHandler is called for every observed message.
type TrafficHandler func(TrafficEvent)

// Monitor passively observes messaging menu traffic without taking part in
// it. It needs a connection of its own since a monitoring connection cannot
// make calls.
type Monitor struct {
	conn   *dbus.Conn
	logger *slog.Logger

	onTraffic TrafficHandler
}

// NewMonitor creates a new traffic monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger: logger,
	}
}

// SetTrafficHandler sets the callback for observed messages.
func (m *Monitor) SetTrafficHandler(handler TrafficHandler) {
	m.onTraffic = handler
}

// monitorRules selects broker calls and both broker and application signals.
func monitorRules() []string {
	return []string{
		fmt.Sprintf("type='method_call',interface='%s'", ServiceInterface),
		fmt.Sprintf("type='signal',interface='%s'", ServiceInterface),
		fmt.Sprintf("type='signal',interface='%s'", ApplicationInterface),
	}
}

// Start turns conn into a monitor and begins delivering traffic.
func (m *Monitor) Start(conn *dbus.Conn) error {
	m.conn = conn

	err := conn.BusObject().Call(
		"org.freedesktop.DBus.Monitoring.BecomeMonitor",
		0,
		monitorRules(),
		uint32(0),
	).Err
	if err != nil {
		m.logger.Warn("BecomeMonitor not available, trying AddMatch", "error", err)
		return m.startWithAddMatch()
	}

	m.logger.Info("started D-Bus monitor using BecomeMonitor")
	go m.processMessages()
	return nil
}

// startWithAddMatch uses the older eavesdrop match rules.
func (m *Monitor) startWithAddMatch() error {
	for _, rule := range monitorRules() {
		err := m.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule+",eavesdrop='true'").Err
		if err != nil {
			return fmt.Errorf("failed to add match rule (eavesdrop may require permissions): %w", err)
		}
	}

	m.logger.Info("started D-Bus monitor using AddMatch with eavesdrop")
	go m.processMessages()
	return nil
}

func (m *Monitor) processMessages() {
	ch := make(chan *dbus.Message, 100)
	m.conn.Eavesdrop(ch)

	for msg := range ch {
		ev, ok := trafficFromMessage(msg)
		if !ok {
			continue
		}
		m.logger.Debug("observed broker traffic", "kind", ev.Kind, "member", ev.Member, "sender", ev.Sender)
		if m.onTraffic != nil {
			m.onTraffic(ev)
		}
	}
}

// trafficFromMessage converts a captured message, skipping replies and
// unrelated interfaces.
func trafficFromMessage(msg *dbus.Message) (TrafficEvent, bool) {
	var kind TrafficKind
	switch msg.Type {
	case dbus.TypeMethodCall:
		kind = TrafficCall
	case dbus.TypeSignal:
		kind = TrafficSignal
	default:
		return TrafficEvent{}, false
	}

	iface, _ := headerString(msg, dbus.FieldInterface)
	if iface != ServiceInterface && iface != ApplicationInterface {
		return TrafficEvent{}, false
	}

	ev := TrafficEvent{Time: time.Now(), Kind: kind}
	ev.Member, _ = headerString(msg, dbus.FieldMember)
	ev.Sender, _ = headerString(msg, dbus.FieldSender)
	if v, ok := msg.Headers[dbus.FieldPath]; ok {
		ev.Path, _ = v.Value().(dbus.ObjectPath)
	}
	for _, arg := range msg.Body {
		ev.Args = append(ev.Args, formatArg(arg))
	}
	return ev, true
}

func headerString(msg *dbus.Message, field dbus.HeaderField) (string, bool) {
	v, ok := msg.Headers[field]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func formatArg(arg interface{}) string {
	switch v := arg.(type) {
	case string:
		return v
	case dbus.ObjectPath:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Stop stops the monitor and closes its connection.
func (m *Monitor) Stop() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}
