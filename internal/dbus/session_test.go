package dbus

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/msgmenu/internal/client"
	"github.com/jmylchreest/msgmenu/internal/model"
	"github.com/jmylchreest/msgmenu/internal/registry"
)

// nopBroker accepts every call.
type nopBroker struct{}

func (nopBroker) RegisterApplication(context.Context, string, string) error { return nil }
func (nopBroker) UnregisterApplication(context.Context, string) error       { return nil }
func (nopBroker) ApplicationStoppedRunning(context.Context, string) error   { return nil }
func (nopBroker) SetStatus(context.Context, string, string) error           { return nil }

// startBroker runs a BrokerServer on a fresh connection to addr.
func startBroker(t *testing.T, addr string) (*registry.Registry, *dbus.Conn) {
	t.Helper()
	conn := busConn(t, addr)
	reg := registry.New(model.StatusAvailable)
	t.Cleanup(func() { _ = reg.Close() })

	server := NewBrokerServer(reg, nil)
	require.NoError(t, server.Start(conn))
	t.Cleanup(func() { _ = server.Stop() })
	return reg, conn
}

func TestAppSession_RoundTrip(t *testing.T) {
	addr := privateBus(t)
	reg, brokerConn := startBroker(t, addr)
	appConn := busConn(t, addr)
	ctx := context.Background()

	session, err := OpenAppSession(appConn, "empathy.desktop", SessionOptions{})
	require.NoError(t, err)
	app := session.App()

	statuses := make(chan model.Status, 4)
	app.SetStatusHandler(func(s model.Status) { statuses <- s })

	require.NoError(t, app.Register(ctx))
	require.NoError(t, app.SetStatus(ctx, model.StatusAway))
	require.NoError(t, app.Flush(ctx))

	rec, ok := reg.Get("empathy.desktop")
	require.True(t, ok)
	assert.Equal(t, model.StatusAway, rec.Status)
	assert.True(t, rec.StatusSet)
	assert.Equal(t, appConn.Names()[0], rec.Owner)
	assert.Equal(t, app.MenuPath(), rec.MenuPath)

	proxy := NewBrokerProxy(appConn, WithReportErrors(true))
	require.NoError(t, proxy.ChangeStatus(ctx, model.StatusBusy))
	select {
	case s := <-statuses:
		assert.Equal(t, model.StatusBusy, s)
	case <-time.After(2 * time.Second):
		t.Fatal("StatusChanged was not delivered")
	}

	apps, err := proxy.ListApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "empathy.desktop", apps[0].ID)

	require.NoError(t, app.AppendSource(model.Source{ID: "inbox", Label: "Inbox", Count: 1}))
	var infos []SourceInfo
	err = brokerConn.Object(appConn.Names()[0], dbus.ObjectPath(app.MenuPath())).
		CallWithContext(ctx, ApplicationInterface+".ListSources", 0).Store(&infos)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Inbox", infos[0].Label)

	require.NoError(t, session.Close())
	assert.False(t, reg.IsRegistered("empathy.desktop"))
}

func TestAppSession_CallOrder(t *testing.T) {
	tests := []struct {
		name       string
		steps      func(ctx context.Context, session *AppSession) error
		registered bool
		status     model.Status
	}{
		{
			name: "register then status",
			steps: func(ctx context.Context, session *AppSession) error {
				app := session.App()
				if err := app.Register(ctx); err != nil {
					return err
				}
				if err := app.SetStatus(ctx, model.StatusAway); err != nil {
					return err
				}
				return app.Flush(ctx)
			},
			registered: true,
			status:     model.StatusAway,
		},
		{
			name: "register then close",
			steps: func(ctx context.Context, session *AppSession) error {
				if err := session.App().Register(ctx); err != nil {
					return err
				}
				return session.Close()
			},
		},
		{
			name: "unregister then register",
			steps: func(ctx context.Context, session *AppSession) error {
				app := session.App()
				for _, step := range []func(context.Context) error{app.Register, app.Unregister, app.Register} {
					if err := step(ctx); err != nil {
						return err
					}
				}
				return app.Flush(ctx)
			},
			registered: true,
			status:     model.StatusAvailable,
		},
	}

	addr := privateBus(t)
	reg, _ := startBroker(t, addr)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				session, err := OpenAppSession(busConn(t, addr), "empathy.desktop", SessionOptions{})
				require.NoError(t, err)
				require.NoError(t, tt.steps(context.Background(), session))

				rec, ok := reg.Get("empathy.desktop")
				require.Equal(t, tt.registered, ok, "run %d", i)
				if ok {
					assert.Equal(t, tt.status, rec.Status, "run %d", i)
				}

				require.NoError(t, session.Close())
				require.False(t, reg.IsRegistered("empathy.desktop"), "run %d", i)
			}
		})
	}
}

func TestAppSession_BrokerCalls(t *testing.T) {
	tests := []struct {
		name   string
		steps  func(t *testing.T, app *client.App, broker *recordingBroker)
		closed func(t *testing.T, broker *recordingBroker)
	}{
		{
			name: "registration",
			steps: func(t *testing.T, app *client.App, broker *recordingBroker) {
				ctx := context.Background()
				require.NoError(t, app.Register(ctx))
				require.NoError(t, app.Flush(ctx))
				calls := broker.Calls("RegisterApplication")
				require.Len(t, calls, 1)
				assert.Equal(t, []string{"empathy.desktop", app.MenuPath()}, calls[0].Args)

				require.NoError(t, app.Unregister(ctx))
				require.NoError(t, app.Flush(ctx))
				calls = broker.Calls("UnregisterApplication")
				require.Len(t, calls, 1)
				assert.Equal(t, []string{"empathy.desktop"}, calls[0].Args)
			},
			closed: func(t *testing.T, broker *recordingBroker) {
				calls := broker.Calls("ApplicationStoppedRunning")
				require.Len(t, calls, 1)
				assert.Equal(t, []string{"empathy.desktop"}, calls[0].Args)
			},
		},
		{
			name: "status",
			steps: func(t *testing.T, app *client.App, broker *recordingBroker) {
				ctx := context.Background()
				require.NoError(t, app.Register(ctx))
				require.NoError(t, app.SetStatus(ctx, model.StatusAway))
				require.NoError(t, app.Flush(ctx))
				calls := broker.Calls("SetStatus")
				require.Len(t, calls, 1)
				assert.Equal(t, []string{"empathy.desktop", "away"}, calls[0].Args)
			},
			closed: func(t *testing.T, broker *recordingBroker) {
				assert.Len(t, broker.Calls("RegisterApplication"), 1)
				assert.Len(t, broker.Calls("SetStatus"), 1)
				assert.Len(t, broker.Calls("ApplicationStoppedRunning"), 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := privateBus(t)
			broker := newRecordingBroker()
			broker.serve(t, busConn(t, addr), BusName)

			appConn := busConn(t, addr)
			session, err := OpenAppSession(appConn, "empathy.desktop", SessionOptions{})
			require.NoError(t, err)

			tt.steps(t, session.App(), broker)
			require.NoError(t, session.Close())
			tt.closed(t, broker)

			for _, method := range []string{"RegisterApplication", "ApplicationStoppedRunning"} {
				for _, c := range broker.Calls(method) {
					assert.Equal(t, appConn.Names()[0], c.Sender)
				}
			}
		})
	}
}

func TestBrokerServer_StartNameTaken(t *testing.T) {
	addr := privateBus(t)
	holder := busConn(t, addr)
	reply, err := holder.RequestName(BusName, dbus.NameFlagDoNotQueue)
	require.NoError(t, err)
	require.Equal(t, dbus.RequestNameReplyPrimaryOwner, reply)

	brokerConn := busConn(t, addr)
	reg := registry.New(model.StatusAvailable)
	t.Cleanup(func() { _ = reg.Close() })
	server := NewBrokerServer(reg, nil)

	err = server.Start(brokerConn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already taken")

	// nothing is left exported on the failed connection
	caller := busConn(t, addr)
	call := caller.Object(brokerConn.Names()[0], ServicePath).
		CallWithContext(context.Background(), ServiceInterface+".ListApplications", 0)
	require.Error(t, call.Err)
	var dbusErr dbus.Error
	require.ErrorAs(t, call.Err, &dbusErr)

	// the server can claim the name once it is free
	_, err = holder.ReleaseName(BusName)
	require.NoError(t, err)
	require.NoError(t, server.Start(brokerConn))
	defer server.Stop()

	proxy := NewBrokerProxy(caller, WithReportErrors(true))
	status, err := proxy.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, status)
}

func TestOpenAppSession_RejectsEmptyID(t *testing.T) {
	_, err := OpenAppSession(nil, " ", SessionOptions{})
	assert.ErrorIs(t, err, model.ErrEmptyAppID)
}
