// Package policy implements the decision engine that turns a planner input
// and an optional learned prediction into a final, auditable execution plan.
// The engine enforces hard safety invariants: the learned policy may only
// tune resource budgets within the pre-selected strategy and may only shrink
// allocation relative to the externally supplied baseline. Every failure
// path resolves to a safe fallback; the engine never raises.
package policy

import (
	"fmt"

	"github.com/workcell-labs/foundry/internal/actionspace"
)

// Schema versions of the audit documents this package produces.
const (
	ActionSchemaVersion = "planner_action_v1"
	PlanSchemaVersion   = "executed_plan_v1"
)

// BaselineModelRef identifies actions synthesized by the static baseline
// rather than a learned predictor.
const BaselineModelRef = "baseline_heuristic_v0"

// Mode is the engine's deployment-set run mode.
type Mode string

const (
	// ModeOff always emits the baseline action; the predictor is never invoked.
	ModeOff Mode = "off"

	// ModeLog invokes the predictor for data collection but always abstains
	// to baseline at execution time.
	ModeLog Mode = "log"

	// ModeEnforce lets a prediction that passes every check drive execution.
	ModeEnforce Mode = "enforce"
)

// IsValid checks if the Mode is a valid value.
func (m Mode) IsValid() bool {
	switch m {
	case ModeOff, ModeLog, ModeEnforce:
		return true
	default:
		return false
	}
}

// FallbackReason is the closed enumeration of reasons the engine abstained
// from (or never consulted) the learned policy.
type FallbackReason string

const (
	ReasonPlannerOff            FallbackReason = "planner_off"
	ReasonLogOnly               FallbackReason = "log_only"
	ReasonLowConfidence         FallbackReason = "low_confidence"
	ReasonMalformedPrediction   FallbackReason = "malformed_prediction"
	ReasonPredictionOutOfSpace  FallbackReason = "prediction_out_of_space"
	ReasonPredictionInvalid     FallbackReason = "prediction_invalid"
	ReasonSwarmMismatch         FallbackReason = "swarm_mismatch"
	ReasonCandidatesExceedsCap  FallbackReason = "max_candidates_exceeds_cap"
	ReasonTimeoutExceedsCap     FallbackReason = "timeout_exceeds_cap"
	ReasonInferenceFailed       FallbackReason = "inference_failed"
	ReasonModelUnavailable      FallbackReason = "model_unavailable"
)

// String returns the string representation of the reason.
func (r FallbackReason) String() string {
	return string(r)
}

// Budgets is the discretized resource-budget triple of an action. Each bin
// is a member of the domain's bin set or the NA sentinel.
type Budgets struct {
	CandidatesBin int `json:"candidates_bin"`
	MinutesBin    int `json:"minutes_bin"`
	IterationsBin int `json:"iterations_bin"`
}

// Action is the planner-action audit document: the decision the policy made,
// whether baseline-synthesized or model-predicted. Immutable once built.
type Action struct {
	SchemaVersion    string  `json:"schema_version"`
	CreatedAt        string  `json:"created_at"`
	Strategy         string  `json:"strategy"`
	Budgets          Budgets `json:"budgets"`
	Confidence       float64 `json:"confidence"`
	AbstainToDefault bool    `json:"abstain_to_default"`
	Reason           *string `json:"reason"`
	ModelRef         string  `json:"model_ref"`
	InputHash        string  `json:"input_hash"`
}

// Validate checks the document against its schema.
func (a *Action) Validate() error {
	if a.SchemaVersion != ActionSchemaVersion {
		return fmt.Errorf("planner action schema version %q, want %q", a.SchemaVersion, ActionSchemaVersion)
	}
	if a.CreatedAt == "" {
		return fmt.Errorf("planner action missing created_at")
	}
	if a.Strategy == "" {
		return fmt.Errorf("planner action missing strategy")
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("planner action confidence %v outside [0,1]", a.Confidence)
	}
	if a.ModelRef == "" {
		return fmt.Errorf("planner action missing model_ref")
	}
	return nil
}

// ExecutedPlan is the resolved plan handed to the dispatcher. Invariant:
// executed candidates and timeout never exceed the baseline caps.
type ExecutedPlan struct {
	SchemaVersion          string  `json:"schema_version"`
	StrategyExecuted       string  `json:"strategy_executed"`
	MaxCandidatesExecuted  int     `json:"max_candidates_executed"`
	TimeoutSecondsExecuted int     `json:"timeout_seconds_executed"`
	MaxIterationsExecuted  int     `json:"max_iterations_executed"`
	FallbackApplied        bool    `json:"fallback_applied"`
	FallbackReason         *string `json:"fallback_reason"`
}

// Validate checks the document against its schema.
func (p *ExecutedPlan) Validate() error {
	if p.SchemaVersion != PlanSchemaVersion {
		return fmt.Errorf("executed plan schema version %q, want %q", p.SchemaVersion, PlanSchemaVersion)
	}
	if p.StrategyExecuted == "" {
		return fmt.Errorf("executed plan missing strategy")
	}
	if p.FallbackApplied && p.FallbackReason == nil {
		return fmt.Errorf("executed plan fallback applied without a reason")
	}
	return nil
}

// Prediction is the raw model output before validation. Bin pointers are nil
// when the model failed to produce that element of the 4-tuple; the NA
// sentinel is expressed as actionspace.NA.
type Prediction struct {
	Strategy      string  `json:"strategy"`
	CandidatesBin *int    `json:"candidates_bin"`
	MinutesBin    *int    `json:"minutes_bin"`
	IterationsBin *int    `json:"iterations_bin"`
	Confidence    float64 `json:"confidence"`
}

// wellFormed reports whether the prediction is a complete 4-tuple.
func (p Prediction) wellFormed() bool {
	return p.Strategy != "" && p.CandidatesBin != nil && p.MinutesBin != nil && p.IterationsBin != nil
}

// budgets converts a well-formed prediction's bins into Budgets.
func (p Prediction) budgets() Budgets {
	return Budgets{
		CandidatesBin: *p.CandidatesBin,
		MinutesBin:    *p.MinutesBin,
		IterationsBin: *p.IterationsBin,
	}
}

// inSpace reports whether all four predicted values are members of the
// configured action space (bin-set membership, not combinatorial validity).
func (p Prediction) inSpace(space *actionspace.Space) bool {
	return space.HasStrategy(p.Strategy) &&
		space.Contains(actionspace.KindCandidates, *p.CandidatesBin) &&
		space.Contains(actionspace.KindMinutes, *p.MinutesBin) &&
		space.Contains(actionspace.KindIterations, *p.IterationsBin)
}
