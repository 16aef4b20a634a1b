package history

import (
	"context"
	"log/slog"
	"sort"
)

// Similarity scoring weights. The ranking is a pure function of the query
// and candidate list; identical inputs always yield identically ordered
// output.
const (
	jobTypeWeight   = 2.0
	tagWeight       = 1.5
	worldWeight     = 1.0
	objectiveWeight = 1.0
	recencyWeight   = 1.0

	// recencyHalfLifeDays controls how fast the recency contribution decays.
	recencyHalfLifeDays = 7.0
)

// Selector merges candidates from configured sources and ranks them by
// similarity to the query.
type Selector struct {
	sources []Source
	logger  *slog.Logger
}

// NewSelector creates a Selector over the given sources. A nil logger
// disables source-failure logging.
func NewSelector(logger *slog.Logger, sources ...Source) *Selector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Selector{sources: sources, logger: logger}
}

// Select gathers candidates from all sources and returns the top n ranked by
// similarity to the query. A failing source contributes an empty set.
func (s *Selector) Select(ctx context.Context, q Query, n int) []Candidate {
	var merged []Candidate
	for _, source := range s.sources {
		candidates, err := source.Fetch(ctx, q)
		if err != nil {
			s.logger.Warn("history source unavailable, continuing without it",
				"job_type", q.JobType, "error", err)
			continue
		}
		merged = append(merged, candidates...)
	}
	return Rank(q, merged, n)
}

// Rank filters, orders, and truncates candidates deterministically:
// candidates without a known start time are dropped, the remainder is
// sorted ascending by (started_at, run_id) and deduplicated, then ranked by
// similarity. Ties in similarity preserve the (started_at, run_id) order.
func Rank(q Query, candidates []Candidate, n int) []Candidate {
	if n <= 0 {
		return []Candidate{}
	}

	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.StartedAt == nil || c.StartedAt.IsZero() {
			continue
		}
		filtered = append(filtered, c)
	}

	// Canonical iteration order before any truncation or scoring.
	sort.Slice(filtered, func(i, j int) bool {
		ti, tj := *filtered[i].StartedAt, *filtered[j].StartedAt
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return filtered[i].RunID < filtered[j].RunID
	})

	// Deduplicate by (started_at, run_id); the first occurrence wins.
	deduped := filtered[:0]
	for i, c := range filtered {
		if i > 0 {
			prev := deduped[len(deduped)-1]
			if prev.StartedAt.Equal(*c.StartedAt) && prev.RunID == c.RunID {
				continue
			}
		}
		deduped = append(deduped, c)
	}

	// Stable sort by similarity keeps the canonical order for equal scores.
	sort.SliceStable(deduped, func(i, j int) bool {
		return similarity(q, deduped[i]) > similarity(q, deduped[j])
	})

	if len(deduped) > n {
		deduped = deduped[:n]
	}
	out := make([]Candidate, len(deduped))
	copy(out, deduped)
	return out
}

// similarity scores how relevant a candidate is to the query. Pure and
// deterministic; no randomness, no map iteration.
func similarity(q Query, c Candidate) float64 {
	score := 0.0

	if c.JobType == q.JobType {
		score += jobTypeWeight
	}
	score += tagWeight * tagOverlap(q.Tags, c.Tags)
	if q.WorldID != "" && c.WorldID == q.WorldID {
		score += worldWeight
	}
	if q.ObjectiveID != "" && c.ObjectiveID == q.ObjectiveID {
		score += objectiveWeight
	}

	if !q.Now.IsZero() {
		ageDays := q.Now.Sub(*c.StartedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		score += recencyWeight / (1 + ageDays/recencyHalfLifeDays)
	}

	return score
}

// tagOverlap computes the Jaccard overlap of two tag sets.
func tagOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}

	intersection := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			intersection++
		}
	}

	union := len(set) + len(seen) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
