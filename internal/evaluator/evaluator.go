// Package evaluator replays recorded decision datasets offline and scores a
// selection policy against the per-example oracle.
package evaluator

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ActionTuple is the 4-tuple a policy selects: a strategy plus the three
// budget bins. The NA sentinel is carried as-is.
type ActionTuple struct {
	Strategy      string `json:"strategy"`
	CandidatesBin int    `json:"candidates_bin"`
	MinutesBin    int    `json:"minutes_bin"`
	IterationsBin int    `json:"iterations_bin"`
}

// Serialize renders the tuple in a stable form used for equality and for
// the final lexical tie-break of the oracle comparator.
func (a ActionTuple) Serialize() string {
	return fmt.Sprintf("%s|%d|%d|%d", a.Strategy, a.CandidatesBin, a.MinutesBin, a.IterationsBin)
}

// Candidate is one recorded execution of a task under a specific action.
type Candidate struct {
	Action          ActionTuple `json:"action"`
	Verified        bool        `json:"verified"`
	DurationSeconds float64     `json:"duration_seconds"`
	CostUSD         float64     `json:"cost_usd"`
}

// Example is one labeled task with all its candidate executions.
type Example struct {
	TaskID     string      `json:"task_id"`
	Candidates []Candidate `json:"candidates"`
}

// Policy selects one candidate per example. Choose returns the index of the
// chosen candidate, or -1 when the policy cannot express a choice for this
// example (the selection then scores as a failure with no action tuple).
type Policy interface {
	Choose(ex Example) int
}

// BaselinePolicy models the static dispatcher: it always takes the first
// recorded candidate.
type BaselinePolicy struct{}

func (BaselinePolicy) Choose(ex Example) int {
	if len(ex.Candidates) == 0 {
		return -1
	}
	return 0
}

// RankedActionPolicy selects via a ranked list of proposed action tuples,
// taking the highest-ranked tuple that is reachable, i.e. present among the
// example's recorded candidates.
type RankedActionPolicy struct {
	Rank func(ex Example) []ActionTuple
}

func (p RankedActionPolicy) Choose(ex Example) int {
	if p.Rank == nil {
		return -1
	}
	for _, want := range p.Rank(ex) {
		key := want.Serialize()
		for i, c := range ex.Candidates {
			if c.Action.Serialize() == key {
				return i
			}
		}
	}
	return -1
}

// Report is the aggregate evaluation result.
type Report struct {
	Examples int `json:"examples"`
	Passes   int `json:"passes"`

	// PassRate is passing selections over all examples.
	PassRate float64 `json:"pass_rate"`

	// MeanTimeToPass averages duration over passing selections only.
	MeanTimeToPass float64 `json:"mean_time_to_pass"`

	// DurationPerPass and CostPerPass divide the totals spent on selected
	// candidates by the number of passes.
	DurationPerPass float64 `json:"duration_per_pass"`
	CostPerPass     float64 `json:"cost_per_pass"`

	// OracleMatchRate is the fraction of examples whose chosen action tuple
	// equals the oracle's, over examples where both tuples are defined.
	OracleMatchRate  float64 `json:"oracle_match_rate"`
	OracleComparable int     `json:"oracle_comparable"`

	// MeanRegret averages regret over examples whose oracle passed.
	MeanRegret     float64 `json:"mean_regret"`
	RegretExamples int     `json:"regret_examples"`
}

// rowResult is the per-example outcome folded into the Report. Kept local
// so aggregation is a pure reduction with no shared counters.
type rowResult struct {
	selectedPass     bool
	selectedDuration float64
	selectedCost     float64
	oracleMatch      bool
	comparable       bool
	regret           float64
	regretDefined    bool
}

// Evaluate scores the policy over the dataset. Rows run in parallel; the
// per-row oracle and regret computation stays single-threaded so its
// tie-break order is deterministic.
func Evaluate(ctx context.Context, dataset []Example, policy Policy) (*Report, error) {
	if policy == nil {
		policy = BaselinePolicy{}
	}

	results := make([]rowResult, len(dataset))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range dataset {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = evaluateRow(dataset[i], policy)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fold(results), nil
}

// evaluateRow scores one example: oracle, chosen candidate, and regret.
func evaluateRow(ex Example, policy Policy) rowResult {
	var res rowResult

	oracleIdx := Oracle(ex.Candidates)
	chosenIdx := policy.Choose(ex)

	var chosen *Candidate
	if chosenIdx >= 0 && chosenIdx < len(ex.Candidates) {
		chosen = &ex.Candidates[chosenIdx]
		res.selectedDuration = chosen.DurationSeconds
		res.selectedCost = chosen.CostUSD
		res.selectedPass = chosen.Verified
	}

	if oracleIdx >= 0 && chosen != nil {
		res.comparable = true
		res.oracleMatch = ex.Candidates[oracleIdx].Action.Serialize() == chosen.Action.Serialize()
	}

	// Regret is defined only when the oracle passed. A failing or
	// inexpressible selection is charged the fail penalty, one past the
	// worst observed duration, so it always scores worse than any pass.
	if oracleIdx >= 0 && ex.Candidates[oracleIdx].Verified {
		selected := failPenalty(ex.Candidates)
		if chosen != nil && chosen.Verified {
			selected = chosen.DurationSeconds
		}
		res.regret = selected - ex.Candidates[oracleIdx].DurationSeconds
		res.regretDefined = true
	}

	return res
}

// Oracle returns the index of the best candidate under the total order:
// verified before unverified, then duration ascending, then cost ascending,
// then the serialized action tuple lexically. Returns -1 for no candidates.
func Oracle(candidates []Candidate) int {
	best := -1
	for i := range candidates {
		if best < 0 || better(candidates[i], candidates[best]) {
			best = i
		}
	}
	return best
}

func better(a, b Candidate) bool {
	if a.Verified != b.Verified {
		return a.Verified
	}
	if a.DurationSeconds != b.DurationSeconds {
		return a.DurationSeconds < b.DurationSeconds
	}
	if a.CostUSD != b.CostUSD {
		return a.CostUSD < b.CostUSD
	}
	return a.Action.Serialize() < b.Action.Serialize()
}

// failPenalty is one plus the maximum observed duration among the
// example's candidates.
func failPenalty(candidates []Candidate) float64 {
	max := 0.0
	for _, c := range candidates {
		if c.DurationSeconds > max {
			max = c.DurationSeconds
		}
	}
	return max + 1
}

// fold reduces the per-row results into the aggregate report.
func fold(results []rowResult) *Report {
	r := &Report{Examples: len(results)}

	var totalDuration, totalCost, passDuration, totalRegret float64
	matches := 0
	for _, row := range results {
		totalDuration += row.selectedDuration
		totalCost += row.selectedCost
		if row.selectedPass {
			r.Passes++
			passDuration += row.selectedDuration
		}
		if row.comparable {
			r.OracleComparable++
			if row.oracleMatch {
				matches++
			}
		}
		if row.regretDefined {
			r.RegretExamples++
			totalRegret += row.regret
		}
	}

	if r.Examples > 0 {
		r.PassRate = float64(r.Passes) / float64(r.Examples)
	}
	if r.Passes > 0 {
		r.MeanTimeToPass = passDuration / float64(r.Passes)
		r.DurationPerPass = totalDuration / float64(r.Passes)
		r.CostPerPass = totalCost / float64(r.Passes)
	}
	if r.OracleComparable > 0 {
		r.OracleMatchRate = float64(matches) / float64(r.OracleComparable)
	}
	if r.RegretExamples > 0 {
		r.MeanRegret = totalRegret / float64(r.RegretExamples)
	}
	return r
}
