package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusAvailable, "available"},
		{StatusAway, "away"},
		{StatusBusy, "busy"},
		{StatusInvisible, "invisible"},
		{StatusOffline, "offline"},
		{Status(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "away", input: "away", want: StatusAway},
		{name: "upper case", input: "BUSY", want: StatusBusy},
		{name: "padded", input: "  offline ", want: StatusOffline},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown", input: "sleeping", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllStatuses_RoundTrip(t *testing.T) {
	for _, s := range AllStatuses() {
		parsed, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	assert.Len(t, AllStatuses(), len(StatusNames))
}

func TestStatus_JSONUsesWireName(t *testing.T) {
	data, err := json.Marshal(struct {
		Status Status `json:"status"`
	}{StatusAway})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"away"}`, string(data))

	var out struct {
		Status Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"invisible"}`), &out))
	assert.Equal(t, StatusInvisible, out.Status)

	_, err = json.Marshal(Status(9))
	assert.Error(t, err)
}
