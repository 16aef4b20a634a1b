package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/workcell-labs/foundry/internal/actionspace"
	"github.com/workcell-labs/foundry/internal/planner"
	"github.com/workcell-labs/foundry/internal/tokenizer"
)

// Config holds the engine's deployment-set parameters.
type Config struct {
	// Mode is the run mode: off, log, or enforce.
	Mode Mode

	// ConfidenceThreshold is the minimum predicted confidence for a
	// prediction to become binding in enforce mode.
	ConfidenceThreshold float64

	// PredictTimeout bounds the predictor call. A timeout is treated
	// identically to a predictor error.
	PredictTimeout time.Duration

	// ModelRef identifies the loaded model bundle on model-driven actions.
	ModelRef string

	// Encoding bounds passed to the tokenizer.
	MaxSimilarRuns           int
	MaxTokensPerHistoryEntry int
	MaxTotalTokens           int
}

// Decision is the auditable bundle produced per decision request: the
// planner input, the planner action, and the executed plan, linked by the
// input hash. All three documents are schema-valid and JSON-serializable.
type Decision struct {
	Input  *planner.Input `json:"planner_input"`
	Action *Action        `json:"planner_action"`
	Plan   *ExecutedPlan  `json:"executed_plan"`
}

// Baseline is the externally computed action used when the learned policy is
// disabled or rejected. Derived from the universe defaults of the input.
type Baseline struct {
	Strategy          string
	MaxCandidates     int
	TimeoutCapSeconds int
	MaxIterations     int
}

// Engine applies static routing rules, confidence thresholds, and hard
// safety checks to produce the final execution plan. Decide is synchronous
// and side-effect-free apart from the memoized predictor load; many
// decisions may run concurrently.
type Engine struct {
	cfg     Config
	encoder *tokenizer.Encoder
	loader  *lazyPredictor
	logger  *slog.Logger
}

// NewEngine creates a decision engine. loader may be nil when no model
// bundle is deployed; enforce-mode decisions then fall back with
// model_unavailable.
func NewEngine(cfg Config, encoder *tokenizer.Encoder, loader PredictorLoader, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.PredictTimeout <= 0 {
		cfg.PredictTimeout = 2 * time.Second
	}
	if cfg.MaxSimilarRuns <= 0 {
		cfg.MaxSimilarRuns = tokenizer.DefaultMaxSimilarRuns
	}
	if cfg.MaxTokensPerHistoryEntry <= 0 {
		cfg.MaxTokensPerHistoryEntry = tokenizer.DefaultMaxTokensPerHistoryEntry
	}
	if cfg.MaxTotalTokens <= 0 {
		cfg.MaxTotalTokens = tokenizer.DefaultMaxTotalTokens
	}
	if cfg.ModelRef == "" {
		cfg.ModelRef = "unversioned_model"
	}
	return &Engine{
		cfg:     cfg,
		encoder: encoder,
		loader:  newLazyPredictor(loader),
		logger:  logger,
	}
}

// Decide produces the decision bundle for one planner input. It never
// returns an error: every failure path resolves to a baseline fallback with
// a recorded reason.
func (e *Engine) Decide(ctx context.Context, in *planner.Input, space *actionspace.Space) *Decision {
	baseline := Baseline{
		Strategy:          in.UniverseDefaults.Strategy,
		MaxCandidates:     in.UniverseDefaults.MaxCandidates,
		TimeoutCapSeconds: in.UniverseDefaults.TimeoutCapSeconds,
		MaxIterations:     in.UniverseDefaults.MaxIterations,
	}

	inputHash, err := in.Hash()
	if err != nil {
		// Hashing a well-formed document cannot fail; a broken document is
		// a build-time bug upstream. Still, never abort the decision.
		e.logger.Error("planner input hash failed", "error", err)
		inputHash = ""
	}

	switch e.cfg.Mode {
	case ModeOff:
		return e.baselineDecision(in, space, baseline, inputHash)
	case ModeLog:
		return e.logDecision(ctx, in, space, baseline, inputHash)
	case ModeEnforce:
		return e.enforceDecision(ctx, in, space, baseline, inputHash)
	default:
		// An unknown mode behaves like off: the safest interpretation.
		e.logger.Warn("unknown planner mode, treating as off", "mode", string(e.cfg.Mode))
		return e.baselineDecision(in, space, baseline, inputHash)
	}
}

// baselineDecision synthesizes the off-mode bundle: baseline action, no
// fallback recorded because the learned policy was never in play.
func (e *Engine) baselineDecision(in *planner.Input, space *actionspace.Space, baseline Baseline, inputHash string) *Decision {
	reason := ReasonPlannerOff.String()
	action := &Action{
		SchemaVersion:    ActionSchemaVersion,
		CreatedAt:        in.CreatedAt,
		Strategy:         baseline.Strategy,
		Budgets:          e.baselineBudgets(space, baseline),
		Confidence:       1.0,
		AbstainToDefault: true,
		Reason:           &reason,
		ModelRef:         BaselineModelRef,
		InputHash:        inputHash,
	}
	plan := baselinePlan(baseline, false, nil)
	return &Decision{Input: in, Action: action, Plan: plan}
}

// logDecision invokes the predictor for data collection but always abstains
// to baseline at execution time.
func (e *Engine) logDecision(ctx context.Context, in *planner.Input, space *actionspace.Space, baseline Baseline, inputHash string) *Decision {
	reason := ReasonLogOnly

	action := &Action{
		SchemaVersion:    ActionSchemaVersion,
		CreatedAt:        in.CreatedAt,
		Strategy:         baseline.Strategy,
		Budgets:          e.baselineBudgets(space, baseline),
		Confidence:       0,
		AbstainToDefault: true,
		ModelRef:         BaselineModelRef,
		InputHash:        inputHash,
	}

	if prediction, perr := e.predict(ctx, in); perr == "" {
		// Record the prediction; it never drives execution in log mode.
		action.Strategy = prediction.Strategy
		action.Confidence = clamp01(prediction.Confidence)
		action.ModelRef = e.cfg.ModelRef
		if prediction.wellFormed() {
			action.Budgets = prediction.budgets()
		}
	} else {
		e.logger.Debug("log-mode prediction unavailable", "reason", perr.String())
	}

	reasonStr := reason.String()
	action.Reason = &reasonStr
	plan := baselinePlan(baseline, true, &reason)
	return &Decision{Input: in, Action: action, Plan: plan}
}

// enforceDecision runs the full check chain; the prediction becomes binding
// only if every check passes.
func (e *Engine) enforceDecision(ctx context.Context, in *planner.Input, space *actionspace.Space, baseline Baseline, inputHash string) *Decision {
	prediction, perr := e.predict(ctx, in)
	if perr != "" {
		return e.fallbackDecision(in, space, baseline, inputHash, perr)
	}

	// Check 2: confidence threshold.
	if prediction.Confidence < e.cfg.ConfidenceThreshold {
		return e.fallbackDecision(in, space, baseline, inputHash, ReasonLowConfidence)
	}

	// Check 3: well-formed 4-tuple.
	if !prediction.wellFormed() {
		return e.fallbackDecision(in, space, baseline, inputHash, ReasonMalformedPrediction)
	}

	// Check 4: all four values are members of the action space.
	if !prediction.inSpace(space) {
		return e.fallbackDecision(in, space, baseline, inputHash, ReasonPredictionOutOfSpace)
	}

	budgets := prediction.budgets()

	// Check 5: combinatorial validity.
	if !space.IsValid(prediction.Strategy, budgets.CandidatesBin, budgets.MinutesBin, budgets.IterationsBin) {
		return e.fallbackDecision(in, space, baseline, inputHash, ReasonPredictionInvalid)
	}

	// Check 6: the learned policy may only tune budgets within the
	// pre-selected strategy, never switch strategies.
	if prediction.Strategy != baseline.Strategy {
		return e.fallbackDecision(in, space, baseline, inputHash, ReasonSwarmMismatch)
	}

	// Check 7: candidate budget never grows past the baseline cap.
	if budgets.CandidatesBin != actionspace.NA && budgets.CandidatesBin > baseline.MaxCandidates {
		return e.fallbackDecision(in, space, baseline, inputHash, ReasonCandidatesExceedsCap)
	}

	// Check 8: timeout never grows past the baseline cap.
	if budgets.MinutesBin != actionspace.NA && budgets.MinutesBin*60 > baseline.TimeoutCapSeconds {
		return e.fallbackDecision(in, space, baseline, inputHash, ReasonTimeoutExceedsCap)
	}

	action := &Action{
		SchemaVersion: ActionSchemaVersion,
		CreatedAt:     in.CreatedAt,
		Strategy:      prediction.Strategy,
		Budgets:       budgets,
		Confidence:    clamp01(prediction.Confidence),
		ModelRef:      e.cfg.ModelRef,
		InputHash:     inputHash,
	}

	// Adopt integer bins as overrides; the NA sentinel keeps baseline.
	plan := &ExecutedPlan{
		SchemaVersion:          PlanSchemaVersion,
		StrategyExecuted:       baseline.Strategy,
		MaxCandidatesExecuted:  baseline.MaxCandidates,
		TimeoutSecondsExecuted: baseline.TimeoutCapSeconds,
		MaxIterationsExecuted:  baseline.MaxIterations,
	}
	if budgets.CandidatesBin != actionspace.NA {
		plan.MaxCandidatesExecuted = budgets.CandidatesBin
	}
	if budgets.MinutesBin != actionspace.NA {
		plan.TimeoutSecondsExecuted = budgets.MinutesBin * 60
	}
	if budgets.IterationsBin != actionspace.NA {
		plan.MaxIterationsExecuted = budgets.IterationsBin
	}

	return &Decision{Input: in, Action: action, Plan: plan}
}

// fallbackDecision resolves a rejected or unavailable prediction into the
// baseline with the first failing reason recorded.
func (e *Engine) fallbackDecision(in *planner.Input, space *actionspace.Space, baseline Baseline, inputHash string, reason FallbackReason) *Decision {
	reasonStr := reason.String()
	action := &Action{
		SchemaVersion:    ActionSchemaVersion,
		CreatedAt:        in.CreatedAt,
		Strategy:         baseline.Strategy,
		Budgets:          e.baselineBudgets(space, baseline),
		Confidence:       0,
		AbstainToDefault: true,
		Reason:           &reasonStr,
		ModelRef:         BaselineModelRef,
		InputHash:        inputHash,
	}
	plan := baselinePlan(baseline, true, &reason)
	return &Decision{Input: in, Action: action, Plan: plan}
}

// predict loads the memoized predictor and invokes it under the configured
// timeout. The returned reason is empty on success; load failures map to
// model_unavailable and call failures (including timeouts) to
// inference_failed.
func (e *Engine) predict(ctx context.Context, in *planner.Input) (Prediction, FallbackReason) {
	predictor, err := e.loader.get()
	if err != nil {
		return Prediction{}, ReasonModelUnavailable
	}

	tokens := e.encoder.Encode(in, e.cfg.MaxSimilarRuns, e.cfg.MaxTokensPerHistoryEntry, e.cfg.MaxTotalTokens)

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.PredictTimeout)
	defer cancel()

	prediction, err := predictor.PredictAction(callCtx, tokens)
	if err != nil {
		e.logger.Warn("predictor call failed", "error", err)
		return Prediction{}, ReasonInferenceFailed
	}
	return prediction, ""
}

// baselineBudgets maps the baseline's raw resource values onto the action
// space's bins so baseline actions are expressed in the same vocabulary as
// predictions.
func (e *Engine) baselineBudgets(space *actionspace.Space, baseline Baseline) Budgets {
	return Budgets{
		CandidatesBin: nearestOrNA(space, actionspace.KindCandidates, baseline.MaxCandidates),
		MinutesBin:    nearestOrNA(space, actionspace.KindMinutes, baseline.TimeoutCapSeconds/60),
		IterationsBin: nearestOrNA(space, actionspace.KindIterations, baseline.MaxIterations),
	}
}

func nearestOrNA(space *actionspace.Space, kind actionspace.BinKind, raw int) int {
	if raw <= 0 {
		return actionspace.NA
	}
	return space.NearestBin(kind, &raw)
}

func baselinePlan(baseline Baseline, fallback bool, reason *FallbackReason) *ExecutedPlan {
	plan := &ExecutedPlan{
		SchemaVersion:          PlanSchemaVersion,
		StrategyExecuted:       baseline.Strategy,
		MaxCandidatesExecuted:  baseline.MaxCandidates,
		TimeoutSecondsExecuted: baseline.TimeoutCapSeconds,
		MaxIterationsExecuted:  baseline.MaxIterations,
		FallbackApplied:        fallback,
	}
	if reason != nil {
		s := reason.String()
		plan.FallbackReason = &s
	}
	return plan
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
