// Package router orders candidate toolchains for a task by blending static
// priority with empirical success rates observed in the transition store.
package router

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/workcell-labs/foundry/internal/database"
)

// DefaultBlendWeight is the share of the combined score contributed by
// empirical success data when no weight is configured.
const DefaultBlendWeight = 0.4

// neutralEmpirical is the success probability assumed for a candidate with
// no recorded history. Neutral, so the static ordering decides.
const neutralEmpirical = 0.5

// TransitionStore is the read side of the historical transition store. The
// store is appended to concurrently by other dispatcher components; readers
// see eventually-consistent snapshots.
type TransitionStore interface {
	RankToolchains(ctx context.Context, candidates []string, domain, jobType, featureKey string) ([]database.ToolchainStat, error)
}

// RankedCandidate is one toolchain with the scores that placed it.
type RankedCandidate struct {
	Toolchain string  `json:"toolchain"`
	Static    float64 `json:"static"`
	Empirical float64 `json:"empirical"`
	Combined  float64 `json:"combined"`
	Attempts  int     `json:"attempts"`
}

// Router blends a positional static priority with empirical success
// probabilities. Safe for concurrent use.
type Router struct {
	store  TransitionStore
	weight float64
	logger *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithBlendWeight sets the empirical share w of the combined score,
// combined = (1-w)*static + w*empirical. Values outside [0,1] are clamped.
func WithBlendWeight(w float64) Option {
	return func(r *Router) {
		if w < 0 {
			w = 0
		}
		if w > 1 {
			w = 1
		}
		r.weight = w
	}
}

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a router. store may be nil; ordering then degrades to
// pure static priority.
func NewRouter(store TransitionStore, opts ...Option) *Router {
	r := &Router{
		store:  store,
		weight: DefaultBlendWeight,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Order ranks the candidate toolchains for (domain, jobType, features) by
// combined score descending. The input order is the static priority: first
// candidate carries the highest static score. Store errors degrade to
// neutral empirical scores and never fail the call.
func (r *Router) Order(ctx context.Context, candidates []string, domain, jobType string, features map[string]string) []RankedCandidate {
	if len(candidates) == 0 {
		return nil
	}

	stats := r.lookup(ctx, candidates, domain, jobType, features)

	ranked := make([]RankedCandidate, len(candidates))
	for i, c := range candidates {
		static := 1.0
		if len(candidates) > 1 {
			static = float64(len(candidates)-1-i) / float64(len(candidates)-1)
		}
		empirical := neutralEmpirical
		attempts := 0
		if stat, ok := stats[c]; ok && stat.Attempts > 0 {
			empirical = stat.SuccessRate
			attempts = stat.Attempts
		}
		ranked[i] = RankedCandidate{
			Toolchain: c,
			Static:    static,
			Empirical: empirical,
			Combined:  (1-r.weight)*static + r.weight*empirical,
			Attempts:  attempts,
		}
	}

	// Stable, so ties keep the static priority order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Combined > ranked[j].Combined
	})
	return ranked
}

// lookup queries the transition store, mapping results by toolchain. Any
// failure returns an empty map so ordering falls back to static priority.
func (r *Router) lookup(ctx context.Context, candidates []string, domain, jobType string, features map[string]string) map[string]database.ToolchainStat {
	if r.store == nil {
		return nil
	}

	key := FeatureKey(features)
	stats, err := r.store.RankToolchains(ctx, candidates, domain, jobType, key)
	if err != nil {
		r.logger.Warn("transition store query failed, using static order",
			"domain", domain,
			"job_type", jobType,
			"error", err)
		return nil
	}

	byName := make(map[string]database.ToolchainStat, len(stats))
	for _, s := range stats {
		byName[s.Toolchain] = s
	}
	return byName
}

// FeatureKey canonicalizes a feature map into a stable lookup key: sorted
// key=value pairs joined by semicolons. An empty or nil map yields "".
func FeatureKey(features map[string]string) string {
	if len(features) == 0 {
		return ""
	}
	keys := make([]string, 0, len(features))
	for k := range features {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(features[k])
	}
	return b.String()
}
