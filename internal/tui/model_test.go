package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/msgmenu/internal/model"
)

type fakeSource struct {
	apps    []model.Application
	status  model.Status
	err     error
	changed []model.Status
}

func (f *fakeSource) ListApplications(context.Context) ([]model.Application, error) {
	return f.apps, f.err
}

func (f *fakeSource) GetStatus(context.Context) (model.Status, error) {
	return f.status, f.err
}

func (f *fakeSource) ChangeStatus(_ context.Context, status model.Status) error {
	if f.err != nil {
		return f.err
	}
	f.changed = append(f.changed, status)
	f.status = status
	return nil
}

func testSource() *fakeSource {
	now := time.Now()
	return &fakeSource{
		status: model.StatusAway,
		apps: []model.Application{
			{ID: "empathy.desktop", MenuPath: "/com/canonical/indicator/messages/empathy_desktop", Owner: ":1.4", Status: model.StatusBusy, StatusSet: true, RegisteredAt: now.Add(-time.Minute)},
			{ID: "thunderbird.desktop", MenuPath: "/com/canonical/indicator/messages/thunderbird_desktop", Owner: ":1.5", RegisteredAt: now},
		},
	}
}

// loaded returns a sized model that has received one snapshot.
func loaded(t *testing.T, src Source) Model {
	t.Helper()
	var tm tea.Model = New(src, Options{})
	tm, _ = tm.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	tm, _ = tm.Update(tm.(Model).fetch())
	return tm.(Model)
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current model.Status
		want    model.Status
	}{
		{model.StatusAvailable, model.StatusAway},
		{model.StatusAway, model.StatusBusy},
		{model.StatusBusy, model.StatusInvisible},
		{model.StatusInvisible, model.StatusOffline},
		{model.StatusOffline, model.StatusAvailable},
		{model.Status(42), model.StatusAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.current.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, nextStatus(tt.current))
		})
	}
}

func TestModel_ViewBeforeResize(t *testing.T) {
	m := New(testSource(), Options{})
	assert.Equal(t, "Loading...", m.View())
	assert.Equal(t, DefaultRefreshInterval, m.opts.RefreshInterval)
}

func TestModel_Snapshot(t *testing.T) {
	m := loaded(t, testSource())

	assert.True(t, m.connected)
	assert.Equal(t, model.StatusAway, m.globalStatus)
	require.Len(t, m.list.Items(), 2)
	assert.Equal(t, "empathy.desktop", m.list.Items()[0].(appItem).Title())

	view := m.View()
	assert.Contains(t, view, "Global status:")
	assert.Contains(t, view, "away")
	assert.Contains(t, view, "2 registered")
}

func TestModel_SnapshotError(t *testing.T) {
	src := testSource()
	src.err = errors.New("name has no owner")
	m := loaded(t, src)

	assert.False(t, m.connected)
	assert.Contains(t, m.View(), "no broker")
}

func TestModel_DetailMode(t *testing.T) {
	m := loaded(t, testSource())

	tm, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = tm.(Model)
	require.Equal(t, ModeDetail, m.mode)
	require.NotNil(t, m.selected)
	assert.Equal(t, "empathy.desktop", m.selected.ID)
	assert.Contains(t, m.View(), "Application Detail")

	tm, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = tm.(Model)
	assert.Equal(t, ModeList, m.mode)
	assert.Nil(t, m.selected)
}

func TestModel_HelpToggle(t *testing.T) {
	m := loaded(t, testSource())

	tm, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = tm.(Model)
	assert.Equal(t, ModeHelp, m.mode)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	tm, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	assert.Equal(t, ModeList, tm.(Model).mode)
}

func TestModel_CycleStatus(t *testing.T) {
	src := testSource()
	m := loaded(t, src)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	require.NotNil(t, cmd)
	msg := cmd()
	changed, ok := msg.(statusChangedMsg)
	require.True(t, ok)
	assert.Equal(t, model.StatusBusy, changed.status)
	assert.Equal(t, []model.Status{model.StatusBusy}, src.changed)

	tm, _ := m.Update(msg)
	assert.Equal(t, model.StatusBusy, tm.(Model).globalStatus)
}

func TestModel_CycleStatusFailure(t *testing.T) {
	src := testSource()
	m := loaded(t, src)
	src.err = errors.New("access denied")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	require.NotNil(t, cmd)
	msg, ok := cmd().(statusMsg)
	require.True(t, ok)
	assert.True(t, msg.isErr)
	assert.Contains(t, msg.text, "access denied")
}

func TestModel_StatusMessages(t *testing.T) {
	m := loaded(t, testSource())

	tm, cmd := m.Update(statusMsg{text: "Copied to clipboard"})
	m = tm.(Model)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Copied to clipboard")

	tm, _ = m.Update(clearStatusMsg{})
	assert.NotContains(t, tm.(Model).View(), "Copied to clipboard")
}

func TestModel_WatchForChanges(t *testing.T) {
	changes := make(chan struct{}, 1)
	m := New(testSource(), Options{Changes: changes})

	changes <- struct{}{}
	assert.Equal(t, changeMsg{}, m.watchForChanges())

	close(changes)
	assert.Nil(t, m.watchForChanges())

	assert.Nil(t, New(testSource(), Options{}).watchForChanges())
}

func TestAppItem(t *testing.T) {
	src := testSource()
	busy := appItem{app: src.apps[0]}
	assert.Contains(t, busy.Description(), "busy · :1.4")
	assert.Contains(t, busy.FilterValue(), "empathy.desktop")

	unset := appItem{app: src.apps[1]}
	assert.Contains(t, unset.Description(), "available (default)")
}

func TestRenderDetail(t *testing.T) {
	out := renderDetail(testSource().apps[1])
	assert.Contains(t, out, "thunderbird.desktop")
	assert.Contains(t, out, "/com/canonical/indicator/messages/thunderbird_desktop")
	assert.Contains(t, out, "never reported")
}
