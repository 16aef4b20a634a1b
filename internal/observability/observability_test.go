package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workcell-labs/foundry/internal/planner"
	"github.com/workcell-labs/foundry/internal/policy"
	"github.com/workcell-labs/foundry/internal/types"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info", "json").Info("hello", "key", "value")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	NewLogger(&buf, "info", "text").Info("hello", "key", "value")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	NewLogger(&buf, "warn", "json").Info("suppressed")
	assert.Empty(t, buf.String())
}

func testDecision() *policy.Decision {
	reason := "log_only"
	return &policy.Decision{
		Input: &planner.Input{
			SchemaVersion: planner.SchemaVersion,
			CreatedAt:     "2026-03-01T12:00:00Z",
			UniverseID:    "u",
			JobType:       "feature",
			UniverseDefaults: types.UniverseDefaults{
				Strategy: "solo", MaxCandidates: 1, TimeoutCapSeconds: 600, MaxIterations: 1,
			},
		},
		Action: &policy.Action{
			SchemaVersion: policy.ActionSchemaVersion,
			CreatedAt:     "2026-03-01T12:00:00Z",
			Strategy:      "solo",
			ModelRef:      policy.BaselineModelRef,
		},
		Plan: &policy.ExecutedPlan{
			SchemaVersion:          policy.PlanSchemaVersion,
			StrategyExecuted:       "solo",
			MaxCandidatesExecuted:  1,
			TimeoutSecondsExecuted: 600,
			MaxIterationsExecuted:  1,
			FallbackApplied:        true,
			FallbackReason:         &reason,
		},
	}
}

func TestAuditWriter_RecordsBundles(t *testing.T) {
	var buf bytes.Buffer
	aw := NewAuditWriter(&buf, nil)

	aw.Record(testDecision())
	aw.Record(testDecision())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var bundle map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &bundle))
	assert.Contains(t, bundle, "planner_input")
	assert.Contains(t, bundle, "planner_action")
	assert.Contains(t, bundle, "executed_plan")

	written, dropped := aw.Stats()
	assert.Equal(t, 2, written)
	assert.Zero(t, dropped)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestAuditWriter_WriteFailureNeverPropagates(t *testing.T) {
	aw := NewAuditWriter(failingWriter{}, nil)

	aw.Record(testDecision())
	aw.Record(nil)

	written, dropped := aw.Stats()
	assert.Zero(t, written)
	assert.Equal(t, 1, dropped)
}

func TestAuditWriter_ConcurrentRecords(t *testing.T) {
	var buf bytes.Buffer
	aw := NewAuditWriter(&buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			aw.Record(testDecision())
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 32)
	for _, line := range lines {
		assert.NoError(t, json.Unmarshal([]byte(line), &map[string]any{}))
	}
}
