package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/msgmenu/internal/model"
)

func TestNew(t *testing.T) {
	r := New(model.StatusAway)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, model.StatusAway, r.GlobalStatus())

	r = New(model.Status(99))
	assert.Equal(t, model.StatusAvailable, r.GlobalStatus())
}

func TestRegistry_Register(t *testing.T) {
	r := New(model.StatusAvailable)
	defer r.Close()

	app, added, err := r.Register("empathy.desktop", "/com/canonical/indicator/messages/empathy_desktop", ":1.7")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "empathy.desktop", app.ID)
	assert.Equal(t, ":1.7", app.Owner)
	assert.NotEmpty(t, app.Token)
	assert.True(t, r.IsRegistered("empathy.desktop"))

	again, added, err := r.Register("empathy.desktop", "/other", ":1.8")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, app.Token, again.Token)
	assert.Equal(t, "/other", again.MenuPath)
	assert.Equal(t, ":1.8", again.Owner)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_RegisterDefaultsMenuPath(t *testing.T) {
	r := New(model.StatusAvailable)
	app, _, err := r.Register("empathy.desktop", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationPath("empathy.desktop"), app.MenuPath)
}

func TestRegistry_RegisterRejectsEmptyID(t *testing.T) {
	r := New(model.StatusAvailable)
	_, _, err := r.Register("", "/x", "")
	assert.ErrorIs(t, err, model.ErrEmptyAppID)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_UnregisterAndStopped(t *testing.T) {
	r := New(model.StatusAvailable)
	_, _, err := r.Register("a.desktop", "", "")
	require.NoError(t, err)
	_, _, err = r.Register("b.desktop", "", "")
	require.NoError(t, err)

	removed, err := r.Unregister("a.desktop")
	require.NoError(t, err)
	assert.Equal(t, "a.desktop", removed.ID)

	_, err = r.Unregister("a.desktop")
	assert.ErrorIs(t, err, ErrNotRegistered)

	removed, err = r.StoppedRunning("b.desktop")
	require.NoError(t, err)
	assert.Equal(t, "b.desktop", removed.ID)

	_, err = r.StoppedRunning("b.desktop")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_SetStatus(t *testing.T) {
	r := New(model.StatusAvailable)

	err := r.SetStatus("empathy.desktop", model.StatusAway)
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, _, err = r.Register("empathy.desktop", "", "")
	require.NoError(t, err)

	require.NoError(t, r.SetStatus("empathy.desktop", model.StatusAway))
	app, ok := r.Get("empathy.desktop")
	require.True(t, ok)
	assert.Equal(t, model.StatusAway, app.Status)
	assert.True(t, app.StatusSet)

	err = r.SetStatus("empathy.desktop", model.Status(12))
	assert.ErrorIs(t, err, model.ErrInvalidStatus)

	// re-registering keeps the reported status
	_, _, err = r.Register("empathy.desktop", "", "")
	require.NoError(t, err)
	app, _ = r.Get("empathy.desktop")
	assert.Equal(t, model.StatusAway, app.Status)
}

func TestRegistry_DropOwner(t *testing.T) {
	r := New(model.StatusAvailable)
	_, _, _ = r.Register("b.desktop", "", ":1.1")
	_, _, _ = r.Register("a.desktop", "", ":1.1")
	_, _, _ = r.Register("c.desktop", "", ":1.2")

	dropped := r.DropOwner(":1.1")
	require.Len(t, dropped, 2)
	assert.Equal(t, "a.desktop", dropped[0].ID)
	assert.Equal(t, "b.desktop", dropped[1].ID)
	assert.Equal(t, 1, r.Count())

	assert.Empty(t, r.DropOwner(""))
	assert.Empty(t, r.DropOwner(":1.99"))
}

func TestRegistry_GlobalStatus(t *testing.T) {
	r := New(model.StatusAvailable)

	changed, err := r.SetGlobalStatus(model.StatusBusy)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatusBusy, r.GlobalStatus())

	changed, err = r.SetGlobalStatus(model.StatusBusy)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = r.SetGlobalStatus(model.Status(-3))
	assert.ErrorIs(t, err, model.ErrInvalidStatus)
}

func TestRegistry_ListOrder(t *testing.T) {
	r := New(model.StatusAvailable)
	_, _, _ = r.Register("first.desktop", "", "")
	time.Sleep(2 * time.Millisecond)
	_, _, _ = r.Register("second.desktop", "", "")

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "first.desktop", list[0].ID)
	assert.Equal(t, "second.desktop", list[1].ID)
}

func TestRegistry_Subscribe(t *testing.T) {
	r := New(model.StatusAvailable)
	ch := r.Subscribe()

	_, _, err := r.Register("empathy.desktop", "", "")
	require.NoError(t, err)
	require.NoError(t, r.SetStatus("empathy.desktop", model.StatusAway))
	_, err = r.StoppedRunning("empathy.desktop")
	require.NoError(t, err)

	expected := []ChangeEvent{
		{Type: ChangeTypeAdded, AppID: "empathy.desktop", Status: model.StatusAvailable},
		{Type: ChangeTypeStatus, AppID: "empathy.desktop", Status: model.StatusAway},
		{Type: ChangeTypeRemoved, AppID: "empathy.desktop", Status: model.StatusAway, Reason: model.RemovalStopped},
	}
	for _, want := range expected {
		select {
		case got := <-ch:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", want.Type)
		}
	}

	r.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestRegistry_SubscribeFiltered(t *testing.T) {
	r := New(model.StatusAvailable)
	ch := r.Subscribe(ChangeTypeAdded, ChangeTypeGlobalStatus)
	defer r.Unsubscribe(ch)

	const apps = 100
	for i := 0; i < apps; i++ {
		id := fmt.Sprintf("app%03d.desktop", i)
		_, _, err := r.Register(id, "", "")
		require.NoError(t, err)
		require.NoError(t, r.SetStatus(id, model.StatusBusy))
	}
	changed, err := r.SetGlobalStatus(model.StatusAway)
	require.NoError(t, err)
	require.True(t, changed)

	for i := 0; i < apps; i++ {
		got := receive(t, ch)
		assert.Equal(t, ChangeTypeAdded, got.Type)
		assert.Equal(t, fmt.Sprintf("app%03d.desktop", i), got.AppID)
	}
	assert.Equal(t, ChangeEvent{Type: ChangeTypeGlobalStatus, Status: model.StatusAway}, receive(t, ch))
}

func TestRegistry_SubscribeSlowReader(t *testing.T) {
	tests := []struct {
		name  string
		burst int
	}{
		{"single", 1},
		{"above old buffer", 33},
		{"large", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(model.StatusAvailable)
			ch := r.Subscribe()
			defer r.Unsubscribe(ch)

			_, _, err := r.Register("empathy.desktop", "", "")
			require.NoError(t, err)
			// nothing reads until every event has been produced
			for i := 0; i < tt.burst; i++ {
				status := model.StatusAway
				if i%2 == 1 {
					status = model.StatusBusy
				}
				require.NoError(t, r.SetStatus("empathy.desktop", status))
			}

			assert.Equal(t, ChangeTypeAdded, receive(t, ch).Type)
			for i := 0; i < tt.burst; i++ {
				got := receive(t, ch)
				require.Equal(t, ChangeTypeStatus, got.Type, "event %d", i)
				if i%2 == 1 {
					assert.Equal(t, model.StatusBusy, got.Status)
				} else {
					assert.Equal(t, model.StatusAway, got.Status)
				}
			}
		})
	}
}

func receive(t *testing.T, ch <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

func TestRegistry_Close(t *testing.T) {
	r := New(model.StatusAvailable)
	ch := r.Subscribe()

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, ok := <-ch
	assert.False(t, ok)

	_, _, err := r.Register("empathy.desktop", "", "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.SetStatus("empathy.desktop", model.StatusAway), ErrClosed)

	late := r.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestChangeTypeString(t *testing.T) {
	assert.Equal(t, "added", ChangeTypeAdded.String())
	assert.Equal(t, "removed", ChangeTypeRemoved.String())
	assert.Equal(t, "unknown", ChangeType(42).String())
}
