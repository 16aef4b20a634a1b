package types

import (
	"encoding/json"
	"fmt"
)

// Priority represents the scheduling priority classification of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// String returns the string representation of Priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid checks if the Priority is a valid value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	prio := Priority(str)
	if !prio.IsValid() {
		return fmt.Errorf("invalid priority: %s", str)
	}

	*p = prio
	return nil
}

// Risk represents the blast-radius classification of a task.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// String returns the string representation of Risk.
func (r Risk) String() string {
	return string(r)
}

// IsValid checks if the Risk is a valid value.
func (r Risk) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (r Risk) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Risk) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	risk := Risk(str)
	if !risk.IsValid() {
		return fmt.Errorf("invalid risk: %s", str)
	}

	*r = risk
	return nil
}

// Size represents the estimated effort classification of a task.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// String returns the string representation of Size.
func (s Size) String() string {
	return string(s)
}

// IsValid checks if the Size is a valid value.
func (s Size) IsValid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Size) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	size := Size(str)
	if !size.IsValid() {
		return fmt.Errorf("invalid size: %s", str)
	}

	*s = size
	return nil
}

// OutcomeStatus represents the terminal status of a past run.
type OutcomeStatus string

const (
	OutcomePassed   OutcomeStatus = "passed"
	OutcomeFailed   OutcomeStatus = "failed"
	OutcomeTimedOut OutcomeStatus = "timed_out"
	OutcomeAborted  OutcomeStatus = "aborted"
	OutcomeUnknown  OutcomeStatus = "unknown"
)

// String returns the string representation of OutcomeStatus.
func (o OutcomeStatus) String() string {
	return string(o)
}

// IsValid checks if the OutcomeStatus is a valid value.
func (o OutcomeStatus) IsValid() bool {
	switch o {
	case OutcomePassed, OutcomeFailed, OutcomeTimedOut, OutcomeAborted, OutcomeUnknown:
		return true
	default:
		return false
	}
}

// TaskContext is an immutable view of a task as owned by the upstream task
// store. The policy layer only ever reads it.
type TaskContext struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Priority    Priority `json:"priority"`
	Risk        Risk     `json:"risk"`
	Size        Size     `json:"size"`
	ToolHint    string   `json:"tool_hint,omitempty"`
	Attempt     int      `json:"attempt"`
}

// SystemState is a point-in-time snapshot of dispatcher load used as a
// planning feature. It is supplied by the dispatcher per decision request.
type SystemState struct {
	QueueDepth          int      `json:"queue_depth"`
	RunningWorkcells    int      `json:"running_workcells"`
	AvailableToolchains []string `json:"available_toolchains,omitempty"`
	LoadFactor          float64  `json:"load_factor"`
}

// UniverseDefaults carries the externally computed baseline for a universe:
// the strategy and resource caps the dispatcher would use when the learned
// policy is disabled or rejected. The policy layer may only shrink resource
// allocation relative to these values, never grow it.
type UniverseDefaults struct {
	Strategy          string `json:"strategy"`
	Objective         string `json:"objective"`
	MaxCandidates     int    `json:"max_candidates"`
	TimeoutCapSeconds int    `json:"timeout_cap_seconds"`
	MaxIterations     int    `json:"max_iterations"`
}
