package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// Default tuning values for an App.
const (
	DefaultQueueSize   = 64
	DefaultCallTimeout = 5 * time.Second
)

// ErrClosed is returned by operations on an App after Close.
var ErrClosed = errors.New("messaging menu app is closed")

// Broker is the remote messaging menu service as seen by one client.
// Implementations deliver each call as a single request.
type Broker interface {
	RegisterApplication(ctx context.Context, appID, menuPath string) error
	UnregisterApplication(ctx context.Context, appID string) error
	ApplicationStoppedRunning(ctx context.Context, appID string) error
	SetStatus(ctx context.Context, appID, status string) error
}

// SourceObserver is told about every change to an App's sources.
// Methods are called with the App locked and must not call back into it.
type SourceObserver interface {
	SourceAdded(position int, source model.Source)
	SourceChanged(source model.Source)
	SourceRemoved(id string)
}

// StatusHandler is called when the broker announces a new global status.
type StatusHandler func(status model.Status)

// ActivateHandler is called when the user activates a source. The source
// has already been removed when the handler runs.
type ActivateHandler func(sourceID string)

// registration is the last registration request the application made.
type registration int

const (
	registrationUnknown registration = iota
	registrationRegistered
	registrationUnregistered
)

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithQueueSize sets the outbound queue depth.
func WithQueueSize(n int) Option {
	return func(a *App) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithCallTimeout bounds the delivery of each outbound call.
func WithCallTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

// WithSourceObserver reports source changes to o.
func WithSourceObserver(o SourceObserver) Option {
	return func(a *App) {
		a.observer = o
	}
}

// App is a client-side handle for one registering application.
type App struct {
	id       string
	menuPath string
	broker   Broker
	logger   *slog.Logger

	queueSize   int
	callTimeout time.Duration
	loop        *dispatcher

	mu         sync.Mutex
	closed     bool
	registered registration
	status     model.Status
	statusSet  bool
	sources    *model.SourceList
	observer   SourceObserver

	onStatus   StatusHandler
	onActivate ActivateHandler
}

// New creates an App for desktopID and starts its event loop.
// The caller must call Close to release it.
func New(broker Broker, desktopID string, opts ...Option) (*App, error) {
	if broker == nil {
		return nil, errors.New("broker cannot be nil")
	}
	if err := model.ValidateAppID(desktopID); err != nil {
		return nil, err
	}

	a := &App{
		id:          desktopID,
		menuPath:    model.ApplicationPath(desktopID),
		broker:      broker,
		logger:      slog.Default(),
		queueSize:   DefaultQueueSize,
		callTimeout: DefaultCallTimeout,
		sources:     model.NewSourceList(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.loop = newDispatcher(a.id, a.queueSize, a.callTimeout, a.logger)
	go a.loop.run()

	return a, nil
}

// With creates an App, runs fn with it and always releases it afterwards,
// including when fn panics.
func With(ctx context.Context, broker Broker, desktopID string, fn func(ctx context.Context, app *App) error, opts ...Option) (err error) {
	app, err := New(broker, desktopID, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, app)
}

// ID returns the desktop id the App was created for.
func (a *App) ID() string {
	return a.id
}

// MenuPath returns the object path the App's sources are published on.
func (a *App) MenuPath() string {
	return a.menuPath
}

// SetStatusHandler sets the handler called on broker status changes.
func (a *App) SetStatusHandler(handler StatusHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onStatus = handler
}

// SetActivateHandler sets the handler called when a source is activated.
func (a *App) SetActivateHandler(handler ActivateHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onActivate = handler
}

// Register announces the application to the broker. The request is only
// remembered for Sync once it has been queued.
func (a *App) Register(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if err := a.enqueueRegister(ctx); err != nil {
		return err
	}
	a.registered = registrationRegistered
	return nil
}

// Unregister withdraws the application from the broker. It does not need
// to follow a Register and does not release the App.
func (a *App) Unregister(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if err := a.enqueueUnregister(ctx); err != nil {
		return err
	}
	a.registered = registrationUnregistered
	return nil
}

// SetStatus reports the application's chat status to the broker.
func (a *App) SetStatus(ctx context.Context, status model.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %d", model.ErrInvalidStatus, int(status))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if err := a.enqueueStatus(ctx, status); err != nil {
		return err
	}
	a.status = status
	a.statusSet = true
	return nil
}

// Status returns the last status set with SetStatus and whether one was set.
func (a *App) Status() (model.Status, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, a.statusSet
}

// IsRegistered reports whether the last registration request was Register.
func (a *App) IsRegistered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registered == registrationRegistered
}

// Sync replays the remembered registration state and status. It is meant
// for when the broker (re)appears on the bus.
func (a *App) Sync(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	switch a.registered {
	case registrationRegistered:
		if err := a.enqueueRegister(ctx); err != nil {
			return err
		}
	case registrationUnregistered:
		if err := a.enqueueUnregister(ctx); err != nil {
			return err
		}
	}
	if a.statusSet {
		return a.enqueueStatus(ctx, a.status)
	}
	return nil
}

// Flush waits until every call queued before it has been delivered.
func (a *App) Flush(ctx context.Context) error {
	barrier := make(chan struct{})

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	err := a.loop.enqueue(ctx, call{barrier: barrier})
	a.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the App. It sends ApplicationStoppedRunning exactly once,
// waits for every queued call to be delivered and stops the event loop.
// Calling Close again has no effect.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	err := a.loop.enqueue(context.Background(), call{
		method: "ApplicationStoppedRunning",
		do: func(ctx context.Context) error {
			return a.broker.ApplicationStoppedRunning(ctx, a.id)
		},
	})
	a.mu.Unlock()

	a.loop.stop()
	a.logger.Debug("messaging menu app released", "app_id", a.id)
	return err
}

// HandleStatusChanged delivers a broker status announcement to the status
// handler. Unknown values are logged and dropped.
func (a *App) HandleStatusChanged(status string) {
	parsed, err := model.ParseStatus(status)
	if err != nil {
		a.logger.Warn("ignoring unknown status from broker", "app_id", a.id, "status", status)
		return
	}

	a.mu.Lock()
	handler := a.onStatus
	closed := a.closed
	a.mu.Unlock()

	if closed || handler == nil {
		return
	}
	handler(parsed)
}

func (a *App) enqueueRegister(ctx context.Context) error {
	return a.loop.enqueue(ctx, call{
		method: "RegisterApplication",
		do: func(ctx context.Context) error {
			return a.broker.RegisterApplication(ctx, a.id, a.menuPath)
		},
	})
}

func (a *App) enqueueUnregister(ctx context.Context) error {
	return a.loop.enqueue(ctx, call{
		method: "UnregisterApplication",
		do: func(ctx context.Context) error {
			return a.broker.UnregisterApplication(ctx, a.id)
		},
	})
}

func (a *App) enqueueStatus(ctx context.Context, status model.Status) error {
	wire := status.String()
	return a.loop.enqueue(ctx, call{
		method: "SetStatus",
		do: func(ctx context.Context) error {
			return a.broker.SetStatus(ctx, a.id, wire)
		},
	})
}
