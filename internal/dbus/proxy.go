package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// caller is the part of dbus.BusObject the proxy uses.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// CallError is returned when a broker call fails.
type CallError struct {
	Method string
	AppID  string
	Err    error
}

func (e *CallError) Error() string {
	if e.AppID == "" {
		return fmt.Sprintf("%s failed: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s for %s failed: %v", e.Method, e.AppID, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ProxyOption configures a BrokerProxy.
type ProxyOption func(*BrokerProxy)

// WithServiceName targets a broker claiming name instead of BusName.
func WithServiceName(name string) ProxyOption {
	return func(p *BrokerProxy) {
		if name != "" {
			p.service = name
		}
	}
}

// WithReportErrors makes registration calls return the error replies the
// broker sends. By default they are logged and dropped.
func WithReportErrors(report bool) ProxyOption {
	return func(p *BrokerProxy) {
		p.reportErrors = report
	}
}

// WithProxyLogger sets the proxy logger.
func WithProxyLogger(logger *slog.Logger) ProxyOption {
	return func(p *BrokerProxy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// BrokerProxy calls the broker service over D-Bus.
type BrokerProxy struct {
	conn         *dbus.Conn
	obj          caller
	service      string
	reportErrors bool
	logger       *slog.Logger
}

// NewBrokerProxy creates a proxy for the broker reachable over conn.
func NewBrokerProxy(conn *dbus.Conn, opts ...ProxyOption) *BrokerProxy {
	p := &BrokerProxy{
		conn:    conn,
		service: BusName,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.obj = conn.Object(p.service, ServicePath)
	return p
}

// RegisterApplication asks the broker to list appID, exporting sources at menuPath.
func (p *BrokerProxy) RegisterApplication(ctx context.Context, appID, menuPath string) error {
	return p.notify(ctx, "RegisterApplication", appID, appID, dbus.ObjectPath(menuPath))
}

// UnregisterApplication asks the broker to stop listing appID.
func (p *BrokerProxy) UnregisterApplication(ctx context.Context, appID string) error {
	return p.notify(ctx, "UnregisterApplication", appID, appID)
}

// ApplicationStoppedRunning tells the broker appID's process is going away.
func (p *BrokerProxy) ApplicationStoppedRunning(ctx context.Context, appID string) error {
	return p.notify(ctx, "ApplicationStoppedRunning", appID, appID)
}

// SetStatus reports appID's status to the broker.
func (p *BrokerProxy) SetStatus(ctx context.Context, appID, status string) error {
	return p.notify(ctx, "SetStatus", appID, appID, status)
}

// ChangeStatus sets the global status.
func (p *BrokerProxy) ChangeStatus(ctx context.Context, status model.Status) error {
	if !status.Valid() {
		return model.ErrInvalidStatus
	}
	call := p.obj.CallWithContext(ctx, ServiceInterface+".ChangeStatus", 0, status.String())
	if call.Err != nil {
		return &CallError{Method: "ChangeStatus", Err: call.Err}
	}
	return nil
}

// GetStatus returns the global status.
func (p *BrokerProxy) GetStatus(ctx context.Context) (model.Status, error) {
	var raw string
	call := p.obj.CallWithContext(ctx, ServiceInterface+".GetStatus", 0)
	if call.Err != nil {
		return model.StatusAvailable, &CallError{Method: "GetStatus", Err: call.Err}
	}
	if err := call.Store(&raw); err != nil {
		return model.StatusAvailable, &CallError{Method: "GetStatus", Err: err}
	}
	status, err := model.ParseStatus(raw)
	if err != nil {
		return model.StatusAvailable, &CallError{Method: "GetStatus", Err: err}
	}
	return status, nil
}

// ListApplications returns the broker's registrations.
func (p *BrokerProxy) ListApplications(ctx context.Context) ([]model.Application, error) {
	var infos []ApplicationInfo
	call := p.obj.CallWithContext(ctx, ServiceInterface+".ListApplications", 0)
	if call.Err != nil {
		return nil, &CallError{Method: "ListApplications", Err: call.Err}
	}
	if err := call.Store(&infos); err != nil {
		return nil, &CallError{Method: "ListApplications", Err: err}
	}

	apps := make([]model.Application, len(infos))
	for i, info := range infos {
		apps[i] = info.Application()
	}
	return apps, nil
}

// WatchStatus calls handler with every StatusChanged broadcast until ctx is done.
func (p *BrokerProxy) WatchStatus(ctx context.Context, handler func(status string)) error {
	return p.watchSignals(ctx, SignalStatusChanged, func(sig *dbus.Signal) {
		if status, ok := parseStatusChanged(sig); ok {
			handler(status)
		}
	})
}

// WatchSignals calls handler with the member name of every broker signal
// until ctx is done.
func (p *BrokerProxy) WatchSignals(ctx context.Context, handler func(member string, args []interface{})) error {
	prefix := ServiceInterface + "."
	return p.watchSignals(ctx, "", func(sig *dbus.Signal) {
		if sig.Path != ServicePath || !strings.HasPrefix(sig.Name, prefix) {
			return
		}
		handler(strings.TrimPrefix(sig.Name, prefix), sig.Body)
	})
}

func (p *BrokerProxy) watchSignals(ctx context.Context, member string, handler func(*dbus.Signal)) error {
	if p.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(ServicePath),
		dbus.WithMatchInterface(ServiceInterface),
	}
	if member != "" {
		opts = append(opts, dbus.WithMatchMember(member))
	}
	if err := p.conn.AddMatchSignal(opts...); err != nil {
		return fmt.Errorf("failed to add match rule: %w", err)
	}

	ch := make(chan *dbus.Signal, 16)
	p.conn.Signal(ch)

	go func() {
		defer func() {
			p.conn.RemoveSignal(ch)
			_ = p.conn.RemoveMatchSignal(opts...)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-ch:
				if !ok {
					return
				}
				handler(sig)
			}
		}
	}()
	return nil
}

// notify sends a registration call and waits until the broker has handled
// it. The bus runs each incoming call on its own goroutine, so a call sent
// before the previous one was answered may overtake it.
// Error replies from the broker are only returned when reportErrors is set;
// transport failures are always returned.
func (p *BrokerProxy) notify(ctx context.Context, method, appID string, args ...interface{}) error {
	call := p.obj.CallWithContext(ctx, ServiceInterface+"."+method, 0, args...)
	if call.Err != nil {
		var reply dbus.Error
		if !p.reportErrors && errors.As(call.Err, &reply) {
			p.logger.Debug("broker rejected call", "method", method, "app_id", appID, "error", reply.Name)
			return nil
		}
		return &CallError{Method: method, AppID: appID, Err: call.Err}
	}
	p.logger.Debug("broker call handled", "method", method, "app_id", appID)
	return nil
}

func parseStatusChanged(sig *dbus.Signal) (string, bool) {
	if sig == nil || sig.Path != ServicePath || sig.Name != ServiceInterface+"."+SignalStatusChanged {
		return "", false
	}
	if len(sig.Body) != 1 {
		return "", false
	}
	status, ok := sig.Body[0].(string)
	return status, ok
}
