package dbus

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/msgmenu/internal/model"
	"github.com/jmylchreest/msgmenu/internal/registry"
)

func TestApplicationInfo(t *testing.T) {
	registered := time.Unix(1700000000, 0)
	app := model.Application{
		Token:        "01HX",
		ID:           "empathy.desktop",
		MenuPath:     "/com/canonical/indicator/messages/empathy_desktop",
		Owner:        ":1.42",
		Status:       model.StatusBusy,
		StatusSet:    true,
		RegisteredAt: registered,
		UpdatedAt:    registered.Add(time.Minute),
	}

	info := NewApplicationInfo(app)
	assert.Equal(t, "empathy.desktop", info.ID)
	assert.Equal(t, dbus.ObjectPath("/com/canonical/indicator/messages/empathy_desktop"), info.MenuPath)
	assert.Equal(t, "busy", info.Status)
	assert.Equal(t, int64(1700000000), info.RegisteredAt)

	back := info.Application()
	assert.Equal(t, app.ID, back.ID)
	assert.Equal(t, app.MenuPath, back.MenuPath)
	assert.Equal(t, app.Owner, back.Owner)
	assert.Equal(t, model.StatusBusy, back.Status)
	assert.True(t, back.StatusSet)
	assert.True(t, back.RegisteredAt.Equal(registered))
	assert.Empty(t, back.Token)
}

func TestApplicationInfo_UnknownStatus(t *testing.T) {
	info := ApplicationInfo{ID: "a.desktop", Status: "napping"}
	assert.Equal(t, model.StatusAvailable, info.Application().Status)
}

func TestSourceInfo(t *testing.T) {
	src := model.Source{
		ID:             "inbox",
		Label:          "Inbox",
		Icon:           "mail-unread",
		Count:          3,
		String:         "",
		DrawsAttention: true,
	}
	assert.Equal(t, src, NewSourceInfo(src).Source())
}

func TestToDBusError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"not registered", registry.ErrNotRegistered, ErrNameNotRegistered},
		{"wrapped not registered", fmt.Errorf("x: %w", registry.ErrNotRegistered), ErrNameNotRegistered},
		{"invalid status", model.ErrInvalidStatus, ErrNameInvalidStatus},
		{"empty id", model.ErrEmptyAppID, ErrNameInvalidArgs},
		{"unknown source", model.ErrSourceNotFound, ErrNameUnknownSource},
		{"other", errors.New("boom"), "org.freedesktop.DBus.Error.Failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toDBusError(tt.err)
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.expected, got.Name)
			}
		})
	}

	assert.Nil(t, toDBusError(nil))
}
