package planner

import (
	"context"
	"sort"
	"time"

	"github.com/workcell-labs/foundry/internal/actionspace"
	"github.com/workcell-labs/foundry/internal/history"
	"github.com/workcell-labs/foundry/internal/types"
)

// DefaultMaxHistory bounds the history section of a planner input.
const DefaultMaxHistory = 8

// Clamp defaults applied when a classification field is absent or outside
// the domain's enumeration.
const (
	defaultPriority = types.PriorityMedium
	defaultRisk     = types.RiskMedium
	defaultSize     = types.SizeMedium
)

// Builder assembles planner-input documents. It is safe for concurrent use;
// all state is read-only after construction.
type Builder struct {
	selector    *history.Selector
	maxKeywords int
	maxHistory  int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithMaxKeywords overrides the keyword extraction bound.
func WithMaxKeywords(n int) BuilderOption {
	return func(b *Builder) { b.maxKeywords = n }
}

// WithMaxHistory overrides the history section bound.
func WithMaxHistory(n int) BuilderOption {
	return func(b *Builder) { b.maxHistory = n }
}

// NewBuilder creates a Builder over the given history selector.
func NewBuilder(selector *history.Selector, opts ...BuilderOption) *Builder {
	b := &Builder{
		selector:    selector,
		maxKeywords: DefaultMaxKeywords,
		maxHistory:  DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles a planner input for one decision request. The document is
// complete and schema-valid on return; the caller treats it as immutable.
func (b *Builder) Build(
	ctx context.Context,
	task types.TaskContext,
	jobType string,
	universeID string,
	defaults types.UniverseDefaults,
	space *actionspace.Space,
	systemState types.SystemState,
	now time.Time,
) *Input {
	summary := b.summarizeTask(task, space)

	query := history.Query{
		Domain:  space.Domain(),
		JobType: jobType,
		Now:     now,
		Tags:    summary.Tags,
	}

	var runs []RunSummary
	if b.selector != nil {
		selected := b.selector.Select(ctx, query, b.maxHistory)
		// The document stores the selected runs most-recent-first; the
		// tokenizer consumes them in this order.
		sort.SliceStable(selected, func(i, j int) bool {
			ti, tj := *selected[i].StartedAt, *selected[j].StartedAt
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			return selected[i].RunID < selected[j].RunID
		})
		for _, c := range selected {
			runs = append(runs, summarizeRun(c))
		}
	}
	if runs == nil {
		runs = []RunSummary{}
	}

	state := systemState
	state.AvailableToolchains = sortedUnique(systemState.AvailableToolchains)

	return &Input{
		SchemaVersion:       SchemaVersion,
		CreatedAt:           now.UTC().Format(time.RFC3339Nano),
		UniverseID:          universeID,
		JobType:             jobType,
		UniverseDefaults:    defaults,
		TaskSummary:         summary,
		History:             runs,
		ActionSpaceSnapshot: space.Snapshot(),
		SystemState:         state,
	}
}

// summarizeTask clamps classifications to the domain's enumerations and
// extracts the bounded keyword list.
func (b *Builder) summarizeTask(task types.TaskContext, space *actionspace.Space) TaskSummary {
	priority := task.Priority
	if !priority.IsValid() {
		priority = defaultPriority
	}
	risk := task.Risk
	if !risk.IsValid() {
		risk = defaultRisk
	}
	size := task.Size
	if !size.IsValid() {
		size = defaultSize
	}

	// A tool hint outside the domain's strategy set is dropped rather than
	// passed through to the model.
	toolHint := task.ToolHint
	if toolHint != "" && !space.HasStrategy(toolHint) {
		toolHint = ""
	}

	return TaskSummary{
		TaskID:   task.ID,
		Priority: priority,
		Risk:     risk,
		Size:     size,
		ToolHint: toolHint,
		Attempt:  task.Attempt,
		Tags:     sortedUnique(task.Tags),
		Keywords: ExtractKeywords(task.Title+" "+task.Description, b.maxKeywords),
	}
}
