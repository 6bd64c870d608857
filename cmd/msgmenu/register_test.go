package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/msgmenu/internal/model"
)

func TestParseSources(t *testing.T) {
	sources, err := parseSources(
		[]string{"inbox=Inbox", "news=Newsletters"},
		[]string{"inbox=3"},
	)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, model.Source{ID: "inbox", Label: "Inbox", Count: 3}, sources[0])
	assert.Equal(t, "news", sources[1].ID)
	assert.Zero(t, sources[1].Count)
}

func TestParseSources_Errors(t *testing.T) {
	tests := []struct {
		name   string
		pairs  []string
		counts []string
	}{
		{"missing separator", []string{"inbox"}, nil},
		{"empty id", []string{"=Inbox"}, nil},
		{"duplicate", []string{"inbox=A", "inbox=B"}, nil},
		{"count not a number", []string{"inbox=Inbox"}, []string{"inbox=many"}},
		{"count for unknown source", []string{"inbox=Inbox"}, []string{"news=1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSources(tt.pairs, tt.counts)
			assert.Error(t, err)
		})
	}
}

func TestGenerateStatus(t *testing.T) {
	apps := []model.Application{
		{ID: "empathy.desktop", Status: model.StatusBusy},
		{ID: "thunderbird.desktop", Status: model.StatusAvailable},
	}
	status := generateStatus(model.StatusAway, apps)
	assert.Equal(t, "away", status.Text)
	assert.Equal(t, "away", status.Class)
	assert.Equal(t, "2 registered\nempathy.desktop: busy\nthunderbird.desktop: available", status.Tooltip)

	assert.Equal(t, "No applications registered", generateStatus(model.StatusAvailable, nil).Tooltip)
}

func TestOfflineStatus(t *testing.T) {
	status := offlineStatus(errors.New("no owner"))
	assert.Equal(t, "disconnected", status.Class)
	assert.Contains(t, status.Tooltip, "no owner")
}

func TestStatusNames(t *testing.T) {
	assert.Equal(t, []string{"available", "away", "busy", "invisible", "offline"}, statusNames())
}
