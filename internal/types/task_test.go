package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_IsValid(t *testing.T) {
	tests := []struct {
		name string
		prio Priority
		want bool
	}{
		{"low is valid", PriorityLow, true},
		{"medium is valid", PriorityMedium, true},
		{"high is valid", PriorityHigh, true},
		{"critical is valid", PriorityCritical, true},
		{"invalid priority", Priority("urgent"), false},
		{"empty priority", Priority(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.prio.IsValid())
		})
	}
}

func TestRisk_UnmarshalJSON(t *testing.T) {
	var r Risk
	require.NoError(t, json.Unmarshal([]byte(`"high"`), &r))
	assert.Equal(t, RiskHigh, r)

	err := json.Unmarshal([]byte(`"catastrophic"`), &r)
	assert.Error(t, err)
}

func TestSize_RoundTrip(t *testing.T) {
	data, err := json.Marshal(SizeLarge)
	require.NoError(t, err)
	assert.Equal(t, `"large"`, string(data))

	var s Size
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, SizeLarge, s)
}

func TestOutcomeStatus_IsValid(t *testing.T) {
	assert.True(t, OutcomePassed.IsValid())
	assert.True(t, OutcomeTimedOut.IsValid())
	assert.False(t, OutcomeStatus("exploded").IsValid())
}

func TestID_RoundTrip(t *testing.T) {
	id := NewID()
	require.NoError(t, id.Validate())

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var parsed ID
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, id, parsed)
}

func TestParseID_Invalid(t *testing.T) {
	_, err := ParseID("not-a-uuid")
	assert.Error(t, err)

	_, err = ParseID("")
	assert.Error(t, err)
}
