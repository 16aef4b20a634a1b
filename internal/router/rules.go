package router

import (
	"fmt"

	"github.com/workcell-labs/foundry/internal/types"
)

// Rule maps a class of tasks to the toolchains that should attempt them.
// Rules are evaluated in order; the first match wins.
type Rule struct {
	// Name identifies the rule in logs and config errors.
	Name string `yaml:"name" mapstructure:"name"`

	// Match criteria. Empty fields match anything; Tags must all be
	// present on the task for the rule to match.
	Domain  string   `yaml:"domain" mapstructure:"domain"`
	JobType string   `yaml:"job_type" mapstructure:"job_type"`
	Tags    []string `yaml:"tags" mapstructure:"tags"`

	// Toolchains to try, in static priority order.
	Toolchains []string `yaml:"toolchains" mapstructure:"toolchains"`

	// Fallbacks are appended after Toolchains when resolving candidates.
	Fallbacks []string `yaml:"fallbacks" mapstructure:"fallbacks"`

	// Speculate runs multiple candidates concurrently; Parallelism bounds
	// how many. Parallelism is meaningful only when Speculate is set.
	Speculate   bool `yaml:"speculate" mapstructure:"speculate"`
	Parallelism int  `yaml:"parallelism" mapstructure:"parallelism"`
}

// matches reports whether the rule applies to (domain, jobType, tags).
func (r Rule) matches(domain, jobType string, tags []string) bool {
	if r.Domain != "" && r.Domain != domain {
		return false
	}
	if r.JobType != "" && r.JobType != jobType {
		return false
	}
	if len(r.Tags) > 0 {
		have := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			have[t] = struct{}{}
		}
		for _, want := range r.Tags {
			if _, ok := have[want]; !ok {
				return false
			}
		}
	}
	return true
}

// Resolution is the outcome of matching a task against the rule set: the
// candidate toolchains in static priority order plus execution hints.
type Resolution struct {
	Rule        string   `json:"rule"`
	Toolchains  []string `json:"toolchains"`
	Speculate   bool     `json:"speculate"`
	Parallelism int      `json:"parallelism"`
}

// RuleSet holds the ordered routing rules and the global toolchain priority
// list used when no rule matches. Immutable after construction.
type RuleSet struct {
	rules    []Rule
	priority []string
}

// NewRuleSet validates the rules and priority list. Rules with no
// toolchains, or an empty priority list alongside no rules, are
// configuration errors.
func NewRuleSet(rules []Rule, priority []string) (*RuleSet, error) {
	if len(rules) == 0 && len(priority) == 0 {
		return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
			"routing requires at least one rule or a toolchain priority list")
	}
	for i, r := range rules {
		if len(r.Toolchains) == 0 {
			return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("routing rule %d (%q) has no toolchains", i, r.Name))
		}
		if r.Parallelism < 0 {
			return nil, types.NewError(types.CONFIG_VALIDATION_FAILED,
				fmt.Sprintf("routing rule %d (%q) has negative parallelism", i, r.Name))
		}
	}
	return &RuleSet{
		rules:    append([]Rule(nil), rules...),
		priority: append([]string(nil), priority...),
	}, nil
}

// Resolve returns the candidates for (domain, jobType, tags): the first
// matching rule's toolchains followed by its fallbacks, deduplicated in
// order. When no rule matches, the global priority list is used.
func (rs *RuleSet) Resolve(domain, jobType string, tags []string) Resolution {
	for _, r := range rs.rules {
		if !r.matches(domain, jobType, tags) {
			continue
		}
		parallelism := r.Parallelism
		if r.Speculate && parallelism == 0 {
			parallelism = len(r.Toolchains)
		}
		return Resolution{
			Rule:        r.Name,
			Toolchains:  dedup(r.Toolchains, r.Fallbacks),
			Speculate:   r.Speculate,
			Parallelism: parallelism,
		}
	}
	return Resolution{Toolchains: dedup(rs.priority, nil)}
}

// dedup concatenates the two lists preserving first-seen order.
func dedup(primary, fallbacks []string) []string {
	seen := make(map[string]struct{}, len(primary)+len(fallbacks))
	out := make([]string, 0, len(primary)+len(fallbacks))
	for _, list := range [][]string{primary, fallbacks} {
		for _, c := range list {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
