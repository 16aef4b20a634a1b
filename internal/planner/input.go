// Package planner assembles planner-input documents: the bounded, versioned,
// hashable snapshot of everything the policy layer knows about a task at
// decision time. Documents are immutable once built and are persisted by the
// dispatcher as audit artifacts.
package planner

import (
	"fmt"
	"sort"

	"github.com/workcell-labs/foundry/internal/actionspace"
	"github.com/workcell-labs/foundry/internal/history"
	"github.com/workcell-labs/foundry/internal/types"
)

// SchemaVersion identifies the planner-input document schema. Bump on any
// field change; trained models are keyed to a schema version.
const SchemaVersion = "planner_input_v1"

// Duration bucket ladder. Buckets are chosen by the first upper bound the
// raw duration falls under; the ladder is fixed so the token vocabulary
// stays enumerable.
var durationLadder = []struct {
	upperSeconds float64
	label        string
}{
	{60, "lt_1m"},
	{300, "lt_5m"},
	{900, "lt_15m"},
	{1800, "lt_30m"},
	{3600, "lt_1h"},
}

// durationBucketOverflow labels durations past the last ladder rung.
const durationBucketOverflow = "ge_1h"

// DurationBucket maps a raw duration in seconds onto the fixed ladder.
func DurationBucket(seconds float64) string {
	for _, rung := range durationLadder {
		if seconds < rung.upperSeconds {
			return rung.label
		}
	}
	return durationBucketOverflow
}

// DurationBuckets returns every label in the ladder, in order. Used by the
// tokenizer to enumerate its vocabulary.
func DurationBuckets() []string {
	labels := make([]string, 0, len(durationLadder)+1)
	for _, rung := range durationLadder {
		labels = append(labels, rung.label)
	}
	return append(labels, durationBucketOverflow)
}

// TaskSummary is the bounded view of a task embedded in a planner input.
// Classification fields are clamped to the domain's enumerations; keywords
// are extracted deterministically and capped.
type TaskSummary struct {
	TaskID   types.ID       `json:"task_id"`
	Priority types.Priority `json:"priority"`
	Risk     types.Risk     `json:"risk"`
	Size     types.Size     `json:"size"`
	ToolHint string         `json:"tool_hint,omitempty"`
	Attempt  int            `json:"attempt"`
	Tags     []string       `json:"tags,omitempty"`
	Keywords []string       `json:"keywords,omitempty"`
}

// RunSummary is the fixed-shape summary of one prior run embedded in the
// history section. List fields are sorted so re-serialization is stable.
type RunSummary struct {
	Outcome        types.OutcomeStatus `json:"outcome"`
	Strategy       string              `json:"strategy,omitempty"`
	DurationBucket string              `json:"duration_bucket"`
	FailingGates   []string            `json:"failing_gates,omitempty"`
	FailureCodes   []string            `json:"failure_codes,omitempty"`
}

// Input is the versioned planner-input document. Created per decision
// request; never mutated afterwards.
type Input struct {
	SchemaVersion       string                 `json:"schema_version"`
	CreatedAt           string                 `json:"created_at"`
	UniverseID          string                 `json:"universe_id"`
	JobType             string                 `json:"job_type"`
	UniverseDefaults    types.UniverseDefaults `json:"universe_defaults"`
	TaskSummary         TaskSummary            `json:"task_summary"`
	History             []RunSummary           `json:"history"`
	ActionSpaceSnapshot actionspace.Snapshot   `json:"action_space_snapshot"`
	SystemState         types.SystemState      `json:"system_state"`
}

// Validate checks the document against its schema. Violations are build-time
// bugs, not runtime conditions this layer tolerates.
func (in *Input) Validate() error {
	if in.SchemaVersion != SchemaVersion {
		return fmt.Errorf("planner input schema version %q, want %q", in.SchemaVersion, SchemaVersion)
	}
	if in.CreatedAt == "" {
		return fmt.Errorf("planner input missing created_at")
	}
	if in.UniverseID == "" {
		return fmt.Errorf("planner input missing universe_id")
	}
	if in.JobType == "" {
		return fmt.Errorf("planner input missing job_type")
	}
	if !in.TaskSummary.Priority.IsValid() {
		return fmt.Errorf("planner input has invalid priority %q", in.TaskSummary.Priority)
	}
	if !in.TaskSummary.Risk.IsValid() {
		return fmt.Errorf("planner input has invalid risk %q", in.TaskSummary.Risk)
	}
	if !in.TaskSummary.Size.IsValid() {
		return fmt.Errorf("planner input has invalid size %q", in.TaskSummary.Size)
	}
	if !sort.StringsAreSorted(in.TaskSummary.Tags) {
		return fmt.Errorf("planner input tags are not sorted")
	}
	for i, entry := range in.History {
		if !entry.Outcome.IsValid() {
			return fmt.Errorf("history entry %d has invalid outcome %q", i, entry.Outcome)
		}
		if entry.DurationBucket == "" {
			return fmt.Errorf("history entry %d missing duration bucket", i)
		}
		if !sort.StringsAreSorted(entry.FailingGates) {
			return fmt.Errorf("history entry %d failing gates are not sorted", i)
		}
		if !sort.StringsAreSorted(entry.FailureCodes) {
			return fmt.Errorf("history entry %d failure codes are not sorted", i)
		}
	}
	return nil
}

// summarizeRun converts a history candidate into the fixed-shape run summary
// embedded in the document.
func summarizeRun(c history.Candidate) RunSummary {
	outcome := types.OutcomeStatus(c.Outcome)
	if !outcome.IsValid() {
		outcome = types.OutcomeUnknown
	}

	gates := sortedUnique(c.FailingGates)
	codes := sortedUnique(c.FailureCodes)

	return RunSummary{
		Outcome:        outcome,
		Strategy:       c.Strategy,
		DurationBucket: DurationBucket(c.DurationSeconds),
		FailingGates:   gates,
		FailureCodes:   codes,
	}
}

// sortedUnique returns a sorted copy with duplicates removed. Nil in, nil
// out, so empty lists serialize identically regardless of provenance.
func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	deduped := out[:1]
	for _, v := range out[1:] {
		if v != deduped[len(deduped)-1] {
			deduped = append(deduped, v)
		}
	}
	return deduped
}
