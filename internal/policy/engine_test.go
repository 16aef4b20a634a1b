package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workcell-labs/foundry/internal/actionspace"
	"github.com/workcell-labs/foundry/internal/planner"
	"github.com/workcell-labs/foundry/internal/tokenizer"
	"github.com/workcell-labs/foundry/internal/types"
)

func intptr(v int) *int { return &v }

func testSpace(t *testing.T) *actionspace.Space {
	t.Helper()

	space, err := actionspace.New(actionspace.Spec{
		Domain:         "code",
		Strategies:     []string{"solo", "speculate_vote"},
		CandidatesBins: []int{1, 2, 4},
		MinutesBins:    []int{15, 30, 60},
		IterationsBins: []int{1, 2, 3},
	})
	require.NoError(t, err)
	return space
}

func testInput() *planner.Input {
	return &planner.Input{
		SchemaVersion: planner.SchemaVersion,
		CreatedAt:     "2026-03-01T12:00:00Z",
		UniverseID:    "universe-1",
		JobType:       "feature",
		UniverseDefaults: types.UniverseDefaults{
			Strategy:          "speculate_vote",
			Objective:         "quality",
			MaxCandidates:     2,
			TimeoutCapSeconds: 1800,
			MaxIterations:     2,
		},
		TaskSummary: planner.TaskSummary{
			Priority: types.PriorityMedium,
			Risk:     types.RiskMedium,
			Size:     types.SizeMedium,
		},
		History: []planner.RunSummary{},
	}
}

type stubPredictor struct {
	prediction Prediction
	err        error
	calls      int
	mu         sync.Mutex
}

func (s *stubPredictor) PredictAction(ctx context.Context, tokens []string) (Prediction, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return Prediction{}, s.err
	}
	return s.prediction, nil
}

func newTestEngine(mode Mode, predictor Predictor, loadErr error) *Engine {
	cfg := Config{
		Mode:                mode,
		ConfidenceThreshold: 0.8,
		ModelRef:            "policy_net_v3",
	}
	encoder := tokenizer.NewEncoder(tokenizer.Config{
		Universes:  []string{"universe-1"},
		JobTypes:   []string{"feature"},
		Strategies: []string{"solo", "speculate_vote"},
		Objectives: []string{"quality"},
	})

	var loader PredictorLoader
	if predictor != nil || loadErr != nil {
		loader = func() (Predictor, error) {
			if loadErr != nil {
				return nil, loadErr
			}
			return predictor, nil
		}
	}
	return NewEngine(cfg, encoder, loader, nil)
}

func requireValidBundle(t *testing.T, d *Decision) {
	t.Helper()
	require.NotNil(t, d)
	require.NoError(t, d.Action.Validate())
	require.NoError(t, d.Plan.Validate())
}

func TestDecide_ModeOff(t *testing.T) {
	predictor := &stubPredictor{prediction: Prediction{Strategy: "speculate_vote", Confidence: 0.99}}
	engine := newTestEngine(ModeOff, predictor, nil)

	d := engine.Decide(context.Background(), testInput(), testSpace(t))
	requireValidBundle(t, d)

	assert.Equal(t, BaselineModelRef, d.Action.ModelRef)
	assert.False(t, d.Plan.FallbackApplied)
	assert.Equal(t, "speculate_vote", d.Plan.StrategyExecuted)
	assert.Equal(t, 2, d.Plan.MaxCandidatesExecuted)
	assert.Equal(t, 1800, d.Plan.TimeoutSecondsExecuted)
	assert.Equal(t, 0, predictor.calls, "off mode must never invoke the predictor")
}

func TestDecide_ModeLog(t *testing.T) {
	predictor := &stubPredictor{prediction: Prediction{
		Strategy:      "speculate_vote",
		CandidatesBin: intptr(1),
		MinutesBin:    intptr(15),
		IterationsBin: intptr(actionspace.NA),
		Confidence:    0.99,
	}}
	engine := newTestEngine(ModeLog, predictor, nil)

	d := engine.Decide(context.Background(), testInput(), testSpace(t))
	requireValidBundle(t, d)

	// The prediction is recorded but never drives execution.
	assert.Equal(t, 1, predictor.calls)
	assert.Equal(t, "policy_net_v3", d.Action.ModelRef)
	assert.True(t, d.Action.AbstainToDefault)

	assert.True(t, d.Plan.FallbackApplied)
	require.NotNil(t, d.Plan.FallbackReason)
	assert.Equal(t, "log_only", *d.Plan.FallbackReason)
	assert.Equal(t, 2, d.Plan.MaxCandidatesExecuted)
	assert.Equal(t, 1800, d.Plan.TimeoutSecondsExecuted)
}

func TestDecide_ModeLog_PredictorFailureStillLogOnly(t *testing.T) {
	engine := newTestEngine(ModeLog, &stubPredictor{err: errors.New("inference exploded")}, nil)

	d := engine.Decide(context.Background(), testInput(), testSpace(t))
	requireValidBundle(t, d)

	assert.True(t, d.Plan.FallbackApplied)
	require.NotNil(t, d.Plan.FallbackReason)
	assert.Equal(t, "log_only", *d.Plan.FallbackReason)
	assert.Equal(t, BaselineModelRef, d.Action.ModelRef)
}

func TestDecide_Enforce_AdoptsShrinkingOverrides(t *testing.T) {
	// Baseline strategy S, caps candidates=2, timeout=1800s; prediction
	// returns S, confidence 0.9, candidates-bin 1, minutes-bin 15.
	predictor := &stubPredictor{prediction: Prediction{
		Strategy:      "speculate_vote",
		CandidatesBin: intptr(1),
		MinutesBin:    intptr(15),
		IterationsBin: intptr(actionspace.NA),
		Confidence:    0.9,
	}}
	engine := newTestEngine(ModeEnforce, predictor, nil)

	d := engine.Decide(context.Background(), testInput(), testSpace(t))
	requireValidBundle(t, d)

	assert.False(t, d.Plan.FallbackApplied)
	assert.Nil(t, d.Plan.FallbackReason)
	assert.Equal(t, 1, d.Plan.MaxCandidatesExecuted)
	assert.Equal(t, 900, d.Plan.TimeoutSecondsExecuted)
	// NA iterations bin keeps the baseline value.
	assert.Equal(t, 2, d.Plan.MaxIterationsExecuted)
	assert.Equal(t, "policy_net_v3", d.Action.ModelRef)
	assert.False(t, d.Action.AbstainToDefault)
}

func TestDecide_Enforce_FallbackReasons(t *testing.T) {
	tests := []struct {
		name       string
		prediction Prediction
		predictErr error
		loadErr    error
		wantReason string
	}{
		{
			name:       "model load failure",
			loadErr:    errors.New("bundle corrupt"),
			wantReason: "model_unavailable",
		},
		{
			name:       "predictor call failure",
			predictErr: errors.New("inference exploded"),
			wantReason: "inference_failed",
		},
		{
			name: "low confidence",
			prediction: Prediction{
				Strategy: "speculate_vote", CandidatesBin: intptr(1),
				MinutesBin: intptr(15), IterationsBin: intptr(actionspace.NA),
				Confidence: 0.2,
			},
			wantReason: "low_confidence",
		},
		{
			name: "malformed prediction",
			prediction: Prediction{
				Strategy: "speculate_vote", Confidence: 0.95,
			},
			wantReason: "malformed_prediction",
		},
		{
			name: "out of space",
			prediction: Prediction{
				Strategy: "speculate_vote", CandidatesBin: intptr(3),
				MinutesBin: intptr(15), IterationsBin: intptr(actionspace.NA),
				Confidence: 0.95,
			},
			wantReason: "prediction_out_of_space",
		},
		{
			name: "strategy not in space",
			prediction: Prediction{
				Strategy: "mystery", CandidatesBin: intptr(1),
				MinutesBin: intptr(15), IterationsBin: intptr(actionspace.NA),
				Confidence: 0.95,
			},
			wantReason: "prediction_out_of_space",
		},
		{
			name: "swarm mismatch",
			prediction: Prediction{
				Strategy: "solo", CandidatesBin: intptr(1),
				MinutesBin: intptr(15), IterationsBin: intptr(actionspace.NA),
				Confidence: 0.95,
			},
			wantReason: "swarm_mismatch",
		},
		{
			name: "candidates exceed cap",
			prediction: Prediction{
				Strategy: "speculate_vote", CandidatesBin: intptr(4),
				MinutesBin: intptr(15), IterationsBin: intptr(actionspace.NA),
				Confidence: 0.95,
			},
			wantReason: "max_candidates_exceeds_cap",
		},
		{
			name: "timeout exceeds cap",
			prediction: Prediction{
				Strategy: "speculate_vote", CandidatesBin: intptr(1),
				MinutesBin: intptr(60), IterationsBin: intptr(actionspace.NA),
				Confidence: 0.95,
			},
			wantReason: "timeout_exceeds_cap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var predictor Predictor
			if tt.loadErr == nil {
				predictor = &stubPredictor{prediction: tt.prediction, err: tt.predictErr}
			}
			engine := newTestEngine(ModeEnforce, predictor, tt.loadErr)

			d := engine.Decide(context.Background(), testInput(), testSpace(t))
			requireValidBundle(t, d)

			assert.True(t, d.Plan.FallbackApplied)
			require.NotNil(t, d.Plan.FallbackReason)
			assert.Equal(t, tt.wantReason, *d.Plan.FallbackReason)

			// Fallback always executes the untouched baseline.
			assert.Equal(t, "speculate_vote", d.Plan.StrategyExecuted)
			assert.Equal(t, 2, d.Plan.MaxCandidatesExecuted)
			assert.Equal(t, 1800, d.Plan.TimeoutSecondsExecuted)
			assert.Equal(t, BaselineModelRef, d.Action.ModelRef)
		})
	}
}

func TestDecide_Enforce_SafetyInvariantAlwaysHolds(t *testing.T) {
	predictions := []Prediction{
		{Strategy: "speculate_vote", CandidatesBin: intptr(1), MinutesBin: intptr(15), IterationsBin: intptr(1), Confidence: 0.9},
		{Strategy: "speculate_vote", CandidatesBin: intptr(2), MinutesBin: intptr(30), IterationsBin: intptr(3), Confidence: 0.9},
		{Strategy: "speculate_vote", CandidatesBin: intptr(4), MinutesBin: intptr(60), IterationsBin: intptr(2), Confidence: 0.9},
		{Strategy: "speculate_vote", CandidatesBin: intptr(actionspace.NA), MinutesBin: intptr(actionspace.NA), IterationsBin: intptr(actionspace.NA), Confidence: 0.9},
	}

	for _, p := range predictions {
		engine := newTestEngine(ModeEnforce, &stubPredictor{prediction: p}, nil)
		d := engine.Decide(context.Background(), testInput(), testSpace(t))
		requireValidBundle(t, d)

		assert.LessOrEqual(t, d.Plan.MaxCandidatesExecuted, 2)
		assert.LessOrEqual(t, d.Plan.TimeoutSecondsExecuted, 1800)
	}
}

func TestDecide_LoadFailureIsMemoized(t *testing.T) {
	loads := 0
	loader := func() (Predictor, error) {
		loads++
		return nil, errors.New("bundle corrupt")
	}

	encoder := tokenizer.NewEncoder(tokenizer.Config{})
	engine := NewEngine(Config{Mode: ModeEnforce, ConfidenceThreshold: 0.8}, encoder, loader, nil)

	for i := 0; i < 5; i++ {
		d := engine.Decide(context.Background(), testInput(), testSpace(t))
		requireValidBundle(t, d)
		require.NotNil(t, d.Plan.FallbackReason)
		assert.Equal(t, "model_unavailable", *d.Plan.FallbackReason)
	}
	assert.Equal(t, 1, loads, "a broken bundle must not be retried")
}

func TestDecide_ConcurrentDecisionsSingleLoad(t *testing.T) {
	loads := 0
	var mu sync.Mutex
	predictor := &stubPredictor{prediction: Prediction{
		Strategy: "speculate_vote", CandidatesBin: intptr(1),
		MinutesBin: intptr(15), IterationsBin: intptr(actionspace.NA),
		Confidence: 0.9,
	}}
	loader := func() (Predictor, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		return predictor, nil
	}

	encoder := tokenizer.NewEncoder(tokenizer.Config{})
	engine := NewEngine(Config{Mode: ModeEnforce, ConfidenceThreshold: 0.8, ModelRef: "m"}, encoder, loader, nil)
	space := testSpace(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := engine.Decide(context.Background(), testInput(), space)
			assert.False(t, d.Plan.FallbackApplied)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, loads)
}

func TestDecide_PredictorTimeout(t *testing.T) {
	slow := predictorFunc(func(ctx context.Context, tokens []string) (Prediction, error) {
		select {
		case <-ctx.Done():
			return Prediction{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return Prediction{Strategy: "speculate_vote", Confidence: 1}, nil
		}
	})

	encoder := tokenizer.NewEncoder(tokenizer.Config{})
	engine := NewEngine(Config{
		Mode:                ModeEnforce,
		ConfidenceThreshold: 0.8,
		PredictTimeout:      20 * time.Millisecond,
	}, encoder, func() (Predictor, error) { return slow, nil }, nil)

	d := engine.Decide(context.Background(), testInput(), testSpace(t))
	requireValidBundle(t, d)

	assert.True(t, d.Plan.FallbackApplied)
	require.NotNil(t, d.Plan.FallbackReason)
	assert.Equal(t, "inference_failed", *d.Plan.FallbackReason)
}

type predictorFunc func(ctx context.Context, tokens []string) (Prediction, error)

func (f predictorFunc) PredictAction(ctx context.Context, tokens []string) (Prediction, error) {
	return f(ctx, tokens)
}
