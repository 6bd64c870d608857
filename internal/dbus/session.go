package dbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/msgmenu/internal/client"
	"github.com/jmylchreest/msgmenu/internal/model"
)

// SessionOptions configures an AppSession.
type SessionOptions struct {
	ServiceName  string
	ReportErrors bool
	QueueSize    int
	CallTimeout  time.Duration
	Logger       *slog.Logger
}

// AppSession binds a client.App to a bus connection. It exports the app's
// sources, forwards global status broadcasts, and replays the app's state
// whenever a broker takes the service name.
type AppSession struct {
	app     *client.App
	object  *ApplicationObject
	watcher *NameWatcher
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// OpenAppSession creates the app for desktopID and wires it to conn.
func OpenAppSession(conn *dbus.Conn, desktopID string, opts SessionOptions) (*AppSession, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = BusName
	}
	if err := model.ValidateAppID(desktopID); err != nil {
		return nil, err
	}

	proxy := NewBrokerProxy(conn,
		WithServiceName(serviceName),
		WithReportErrors(opts.ReportErrors),
		WithProxyLogger(logger),
	)
	object := NewApplicationObject(conn, model.ApplicationPath(desktopID), logger)

	clientOpts := []client.Option{
		client.WithLogger(logger),
		client.WithSourceObserver(object),
	}
	if opts.QueueSize > 0 {
		clientOpts = append(clientOpts, client.WithQueueSize(opts.QueueSize))
	}
	if opts.CallTimeout > 0 {
		clientOpts = append(clientOpts, client.WithCallTimeout(opts.CallTimeout))
	}
	app, err := client.New(proxy, desktopID, clientOpts...)
	if err != nil {
		return nil, err
	}

	s := &AppSession{app: app, object: object, logger: logger}
	object.SetProvider(app)
	if err := object.Export(); err != nil {
		_ = app.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if err := proxy.WatchStatus(ctx, app.HandleStatusChanged); err != nil {
		s.abort()
		return nil, fmt.Errorf("failed to watch status: %w", err)
	}

	s.watcher = NewNameWatcher(conn, serviceName, s.brokerChanged, logger)
	if err := s.watcher.Start(); err != nil {
		s.abort()
		return nil, fmt.Errorf("failed to watch broker: %w", err)
	}
	return s, nil
}

// App returns the session's application handle.
func (s *AppSession) App() *client.App {
	return s.app
}

// Close sends ApplicationStoppedRunning, waits for queued calls and removes
// the exported object.
func (s *AppSession) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.cancel()
	err := s.app.Close()
	s.object.Unexport()
	return err
}

func (s *AppSession) abort() {
	s.cancel()
	_ = s.app.Close()
	s.object.Unexport()
}

func (s *AppSession) brokerChanged(change NameOwnerChange) {
	if !change.Appeared() {
		s.logger.Info("messaging menu broker vanished", "name", change.Name)
		return
	}
	s.logger.Info("messaging menu broker appeared", "name", change.Name, "owner", change.NewOwner)
	if err := s.app.Sync(context.Background()); err != nil {
		s.logger.Debug("failed to replay state", "app_id", s.app.ID(), "error", err)
	}
}
