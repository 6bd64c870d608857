package core

import (
	"testing"
	"time"

	"github.com/jmylchreest/msgmenu/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApps() []model.Application {
	now := time.Now()
	return []model.Application{
		{ID: "empathy.desktop", Owner: ":1.4", MenuPath: "/com/canonical/indicator/messages/empathy_desktop", Status: model.StatusBusy, StatusSet: true, RegisteredAt: now.Add(-2 * time.Hour)},
		{ID: "thunderbird.desktop", Owner: ":1.5", MenuPath: "/com/canonical/indicator/messages/thunderbird_desktop", Status: model.StatusAvailable, RegisteredAt: now.Add(-30 * time.Minute)},
		{ID: "pidgin.desktop", Owner: ":1.4", MenuPath: "/com/canonical/indicator/messages/pidgin_desktop", Status: model.StatusAway, StatusSet: true, RegisteredAt: now.Add(-5 * time.Minute)},
	}
}

func ids(apps []model.Application) []string {
	out := make([]string, len(apps))
	for i, app := range apps {
		out[i] = app.ID
	}
	return out
}

func TestFilter_Empty(t *testing.T) {
	assert.Len(t, Filter(nil, FilterOptions{}), 0)
}

func TestFilter_Options(t *testing.T) {
	busy := model.StatusBusy

	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"none", FilterOptions{}, []string{"empathy.desktop", "thunderbird.desktop", "pidgin.desktop"}},
		{"owner", FilterOptions{Owner: ":1.4"}, []string{"empathy.desktop", "pidgin.desktop"}},
		{"status", FilterOptions{Status: &busy}, []string{"empathy.desktop"}},
		{"since", FilterOptions{Since: time.Hour}, []string{"thunderbird.desktop", "pidgin.desktop"}},
		{"limit", FilterOptions{Limit: 1}, []string{"empathy.desktop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(testApps(), tt.opts)))
		})
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"", []string{"empathy.desktop", "thunderbird.desktop", "pidgin.desktop"}},
		{"status=busy", []string{"empathy.desktop"}},
		{"status!=busy", []string{"thunderbird.desktop", "pidgin.desktop"}},
		{"status>=away", []string{"empathy.desktop", "pidgin.desktop"}},
		{"id~THUNDER", []string{"thunderbird.desktop"}},
		{"id~=^p.*desktop$", []string{"pidgin.desktop"}},
		{"owner=:1.4,status_set=true", []string{"empathy.desktop", "pidgin.desktop"}},
		{"status_set=false", []string{"thunderbird.desktop"}},
		{"path~pidgin", []string{"pidgin.desktop"}},
		{"registered<1h", []string{"thunderbird.desktop", "pidgin.desktop"}},
		{"registered>1h", []string{"empathy.desktop"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			expr, err := ParseFilter(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(FilterWithExpr(testApps(), expr)))
		})
	}
}

func TestParseFilter_Errors(t *testing.T) {
	for _, expr := range []string{
		"status",
		"colour=red",
		"status=sleeping",
		"id~=(",
		"registered<soon",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseFilter(expr)
			assert.Error(t, err)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"0", 0},
		{"", 0},
		{"90m", 90 * time.Minute},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseDuration("xd")
	assert.Error(t, err)
}
