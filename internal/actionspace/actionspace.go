// Package actionspace defines the discrete decision space the policy layer
// selects from: the valid execution strategies per task domain and the
// discretized resource-budget bins (candidate count, minutes, iterations).
// All planning decisions must stay inside this space - the policy cannot
// invent strategies or budgets the dispatcher does not understand.
package actionspace

import (
	"fmt"
	"sort"

	"github.com/workcell-labs/foundry/internal/types"
)

// BinKind identifies one of the three resource-budget dimensions.
type BinKind string

const (
	// KindCandidates is the number of parallel candidate executions.
	KindCandidates BinKind = "candidates"

	// KindMinutes is the wall-clock budget in minutes.
	KindMinutes BinKind = "minutes"

	// KindIterations is the number of refinement iterations.
	KindIterations BinKind = "iterations"
)

// NA is the sentinel bin value meaning "not applicable to this strategy".
// It is a member of every bin set and is never adopted as a budget override.
const NA = -1

// StrategyRule constrains which bin combinations are valid for a strategy.
// A zero-value rule places no constraints beyond bin-set membership.
type StrategyRule struct {
	// CandidatesNA requires the candidates bin to be the NA sentinel.
	CandidatesNA bool `json:"candidates_na,omitempty" mapstructure:"candidates_na"`

	// IterationsNA requires the iterations bin to be the NA sentinel.
	IterationsNA bool `json:"iterations_na,omitempty" mapstructure:"iterations_na"`

	// MinCandidates is the minimum candidates bin value when not NA.
	MinCandidates int `json:"min_candidates,omitempty" mapstructure:"min_candidates"`

	// MinIterations is the minimum iterations bin value when not NA.
	MinIterations int `json:"min_iterations,omitempty" mapstructure:"min_iterations"`
}

// Spec is the static per-domain configuration an action space is built from.
type Spec struct {
	Domain         string                  `json:"domain" mapstructure:"domain"`
	Strategies     []string                `json:"strategies" mapstructure:"strategies"`
	CandidatesBins []int                   `json:"candidates_bins" mapstructure:"candidates_bins"`
	MinutesBins    []int                   `json:"minutes_bins" mapstructure:"minutes_bins"`
	IterationsBins []int                   `json:"iterations_bins" mapstructure:"iterations_bins"`
	StrategyRules  map[string]StrategyRule `json:"strategy_rules,omitempty" mapstructure:"strategy_rules"`
}

// Space is the immutable per-domain action space. Constructed once from a
// validated Spec; all methods are pure functions over that configuration.
type Space struct {
	domain     string
	strategies []string
	strategySet map[string]bool
	bins       map[BinKind][]int
	rules      map[string]StrategyRule
}

// Snapshot is the JSON-shaped view of a Space embedded in planner inputs.
type Snapshot struct {
	Domain         string   `json:"domain"`
	Strategies     []string `json:"strategies"`
	CandidatesBins []int    `json:"candidates_bins"`
	MinutesBins    []int    `json:"minutes_bins"`
	IterationsBins []int    `json:"iterations_bins"`
}

// New builds an immutable Space from a Spec. Configuration errors here are
// fatal at startup: a malformed action space must never reach decision time.
func New(spec Spec) (*Space, error) {
	if spec.Domain == "" {
		return nil, types.NewError(types.ACTION_SPACE_INVALID, "action space domain cannot be empty")
	}
	if len(spec.Strategies) == 0 {
		return nil, types.NewError(types.ACTION_SPACE_INVALID,
			fmt.Sprintf("domain %q declares no strategies", spec.Domain))
	}

	strategySet := make(map[string]bool, len(spec.Strategies))
	for _, s := range spec.Strategies {
		if s == "" {
			return nil, types.NewError(types.ACTION_SPACE_INVALID,
				fmt.Sprintf("domain %q contains an empty strategy name", spec.Domain))
		}
		if strategySet[s] {
			return nil, types.NewError(types.ACTION_SPACE_INVALID,
				fmt.Sprintf("domain %q declares strategy %q twice", spec.Domain, s))
		}
		strategySet[s] = true
	}

	bins := map[BinKind][]int{
		KindCandidates: append([]int(nil), spec.CandidatesBins...),
		KindMinutes:    append([]int(nil), spec.MinutesBins...),
		KindIterations: append([]int(nil), spec.IterationsBins...),
	}
	for kind, values := range bins {
		if len(values) == 0 {
			return nil, types.NewError(types.ACTION_SPACE_INVALID,
				fmt.Sprintf("domain %q declares no %s bins", spec.Domain, kind))
		}
		for _, v := range values {
			if v <= 0 {
				return nil, types.NewError(types.ACTION_SPACE_INVALID,
					fmt.Sprintf("domain %q %s bin %d is not a positive integer", spec.Domain, kind, v))
			}
		}
		sort.Ints(values)
	}

	rules := make(map[string]StrategyRule, len(spec.StrategyRules))
	for name, rule := range spec.StrategyRules {
		if !strategySet[name] {
			return nil, types.NewError(types.ACTION_SPACE_INVALID,
				fmt.Sprintf("domain %q has a rule for unknown strategy %q", spec.Domain, name))
		}
		rules[name] = rule
	}

	strategies := append([]string(nil), spec.Strategies...)
	sort.Strings(strategies)

	return &Space{
		domain:      spec.Domain,
		strategies:  strategies,
		strategySet: strategySet,
		bins:        bins,
		rules:       rules,
	}, nil
}

// Domain returns the domain this space was configured for.
func (s *Space) Domain() string {
	return s.domain
}

// Strategies returns the sorted set of valid strategy identifiers.
func (s *Space) Strategies() []string {
	return append([]string(nil), s.strategies...)
}

// HasStrategy reports whether the named strategy is a member of this space.
func (s *Space) HasStrategy(name string) bool {
	return s.strategySet[name]
}

// BinsFor returns the ordered set of configured bins for the given kind.
// The NA sentinel is implicit and not included.
func (s *Space) BinsFor(kind BinKind) []int {
	return append([]int(nil), s.bins[kind]...)
}

// Contains reports whether bin is a member of the kind's bin set.
// The NA sentinel is a member of every bin set.
func (s *Space) Contains(kind BinKind, bin int) bool {
	if bin == NA {
		return true
	}
	for _, v := range s.bins[kind] {
		if v == bin {
			return true
		}
	}
	return false
}

// NearestBin maps a raw resource value onto the nearest configured bin by
// absolute difference, tie-broken toward the smaller bin value. A nil raw
// value maps to the NA sentinel.
func (s *Space) NearestBin(kind BinKind, raw *int) int {
	if raw == nil {
		return NA
	}

	values := s.bins[kind]
	best := values[0]
	bestDist := abs(*raw - best)
	for _, v := range values[1:] {
		d := abs(*raw - v)
		// Bins are sorted ascending, so a strict improvement is required to
		// move to a larger bin; ties keep the smaller value.
		if d < bestDist {
			best = v
			bestDist = d
		}
	}
	return best
}

// IsValid evaluates the combinatorial validity predicate over a full 4-tuple.
// A tuple is valid when the strategy is a member of the space, every bin is a
// member of its bin set (or NA), and the strategy's rule constraints hold.
func (s *Space) IsValid(strategy string, candidatesBin, minutesBin, iterationsBin int) bool {
	if !s.strategySet[strategy] {
		return false
	}
	if !s.Contains(KindCandidates, candidatesBin) ||
		!s.Contains(KindMinutes, minutesBin) ||
		!s.Contains(KindIterations, iterationsBin) {
		return false
	}

	rule, ok := s.rules[strategy]
	if !ok {
		return true
	}

	if rule.CandidatesNA && candidatesBin != NA {
		return false
	}
	if rule.IterationsNA && iterationsBin != NA {
		return false
	}
	if rule.MinCandidates > 0 && candidatesBin != NA && candidatesBin < rule.MinCandidates {
		return false
	}
	if rule.MinIterations > 0 && iterationsBin != NA && iterationsBin < rule.MinIterations {
		return false
	}
	return true
}

// Snapshot returns the JSON-shaped view of this space for embedding in a
// planner input document. Slices are copies; the snapshot never aliases
// internal state.
func (s *Space) Snapshot() Snapshot {
	return Snapshot{
		Domain:         s.domain,
		Strategies:     s.Strategies(),
		CandidatesBins: s.BinsFor(KindCandidates),
		MinutesBins:    s.BinsFor(KindMinutes),
		IterationsBins: s.BinsFor(KindIterations),
	}
}

// Catalog maps task domains to their configured action spaces.
type Catalog struct {
	spaces map[string]*Space
}

// NewCatalog builds a Catalog from per-domain specs. Duplicate domains are a
// configuration error.
func NewCatalog(specs []Spec) (*Catalog, error) {
	spaces := make(map[string]*Space, len(specs))
	for _, spec := range specs {
		if _, exists := spaces[spec.Domain]; exists {
			return nil, types.NewError(types.ACTION_SPACE_INVALID,
				fmt.Sprintf("domain %q configured twice", spec.Domain))
		}
		space, err := New(spec)
		if err != nil {
			return nil, err
		}
		spaces[spec.Domain] = space
	}
	return &Catalog{spaces: spaces}, nil
}

// SpaceFor returns the action space for a domain.
func (c *Catalog) SpaceFor(domain string) (*Space, error) {
	space, ok := c.spaces[domain]
	if !ok {
		return nil, types.NewError(types.ACTION_SPACE_UNKNOWN_DOMAIN,
			fmt.Sprintf("no action space configured for domain %q", domain))
	}
	return space, nil
}

// IsValid evaluates the validity predicate for a domain's 4-tuple.
// Unknown domains are never valid.
func (c *Catalog) IsValid(domain, strategy string, candidatesBin, minutesBin, iterationsBin int) bool {
	space, ok := c.spaces[domain]
	if !ok {
		return false
	}
	return space.IsValid(strategy, candidatesBin, minutesBin, iterationsBin)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
