package dbus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	busDaemonName      = "org.freedesktop.DBus"
	busDaemonInterface = "org.freedesktop.DBus"
	busDaemonPath      = dbus.ObjectPath("/org/freedesktop/DBus")
	nameOwnerChanged   = busDaemonInterface + ".NameOwnerChanged"
)

// NameOwnerChange is one NameOwnerChanged broadcast.
type NameOwnerChange struct {
	Name     string
	OldOwner string
	NewOwner string
}

// Appeared reports whether the name gained an owner. A takeover by a new
// owner counts as appearing.
func (c NameOwnerChange) Appeared() bool {
	return c.NewOwner != "" && c.NewOwner != c.OldOwner
}

// Vanished reports whether the name lost its owner.
func (c NameOwnerChange) Vanished() bool {
	return c.OldOwner != "" && c.NewOwner == ""
}

// IsUnique reports whether the name is a unique connection name.
func (c NameOwnerChange) IsUnique() bool {
	return strings.HasPrefix(c.Name, ":")
}

// ParseNameOwnerChanged decodes a NameOwnerChanged signal.
func ParseNameOwnerChanged(sig *dbus.Signal) (NameOwnerChange, bool) {
	if sig == nil || sig.Name != nameOwnerChanged || len(sig.Body) != 3 {
		return NameOwnerChange{}, false
	}
	var out NameOwnerChange
	var ok bool
	if out.Name, ok = sig.Body[0].(string); !ok {
		return NameOwnerChange{}, false
	}
	if out.OldOwner, ok = sig.Body[1].(string); !ok {
		return NameOwnerChange{}, false
	}
	if out.NewOwner, ok = sig.Body[2].(string); !ok {
		return NameOwnerChange{}, false
	}
	return out, true
}

// NameWatcher delivers NameOwnerChanged broadcasts to a handler.
type NameWatcher struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	name    string
	handler func(NameOwnerChange)

	mu      sync.Mutex
	signals chan *dbus.Signal
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewNameWatcher creates a watcher for name. An empty name watches every
// ownership change on the bus.
func NewNameWatcher(conn *dbus.Conn, name string, handler func(NameOwnerChange), logger *slog.Logger) *NameWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NameWatcher{
		conn:    conn,
		logger:  logger,
		name:    name,
		handler: handler,
	}
}

// Start subscribes to ownership changes. The handler runs on the watcher's
// goroutine and is only called for transitions after Start.
func (w *NameWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return fmt.Errorf("watcher already started")
	}
	if err := w.conn.AddMatchSignal(w.matchOptions()...); err != nil {
		return fmt.Errorf("failed to add match rule: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.signals = make(chan *dbus.Signal, 32)
	w.doneCh = make(chan struct{})
	w.conn.Signal(w.signals)

	go w.run(ctx, w.signals, w.doneCh)

	w.logger.Debug("name watcher started", "name", w.name)
	return nil
}

// Stop unsubscribes and waits for the watcher goroutine to exit.
func (w *NameWatcher) Stop() {
	w.mu.Lock()
	cancel, done, signals := w.cancel, w.doneCh, w.signals
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.conn.RemoveSignal(signals)
	if err := w.conn.RemoveMatchSignal(w.matchOptions()...); err != nil {
		w.logger.Debug("failed to remove match rule", "error", err)
	}
	w.logger.Debug("name watcher stopped", "name", w.name)
}

// HasOwner reports whether the watched name currently has an owner.
func (w *NameWatcher) HasOwner(ctx context.Context) (bool, error) {
	if w.name == "" {
		return false, fmt.Errorf("no name to query")
	}
	var has bool
	obj := w.conn.Object(busDaemonName, busDaemonPath)
	if err := obj.CallWithContext(ctx, busDaemonInterface+".NameHasOwner", 0, w.name).Store(&has); err != nil {
		return false, fmt.Errorf("failed to query owner of %s: %w", w.name, err)
	}
	return has, nil
}

func (w *NameWatcher) run(ctx context.Context, signals <-chan *dbus.Signal, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			change, ok := ParseNameOwnerChanged(sig)
			if !ok || (w.name != "" && change.Name != w.name) {
				continue
			}
			w.logger.Debug("name owner changed",
				"name", change.Name,
				"old_owner", change.OldOwner,
				"new_owner", change.NewOwner,
			)
			if w.handler != nil {
				w.handler(change)
			}
		}
	}
}

func (w *NameWatcher) matchOptions() []dbus.MatchOption {
	opts := []dbus.MatchOption{
		dbus.WithMatchSender(busDaemonName),
		dbus.WithMatchInterface(busDaemonInterface),
		dbus.WithMatchMember("NameOwnerChanged"),
	}
	if w.name != "" {
		opts = append(opts, dbus.WithMatchArg(0, w.name))
	}
	return opts
}
