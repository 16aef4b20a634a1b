package tokenizer

import (
	"fmt"
	"sort"

	"github.com/workcell-labs/foundry/internal/planner"
)

// Default encoding bounds.
const (
	DefaultMaxSimilarRuns           = 8
	DefaultMaxTokensPerHistoryEntry = 16
	DefaultMaxTotalTokens           = 256
)

// maxListPerHistoryEntry caps the failing-gate and failure-code lists of one
// history entry before hashing.
const maxListPerHistoryEntry = 4

// Encoder turns planner inputs into token sequences. Construction fixes the
// enumerable value sets; Encode is pure and safe for concurrent use.
type Encoder struct {
	universes  map[string]bool
	jobTypes   map[string]bool
	strategies map[string]bool
	objectives map[string]bool
	toolchains map[string]bool
	config     Config
}

// NewEncoder creates an Encoder over the configured value sets.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{
		universes:  toSet(cfg.Universes),
		jobTypes:   toSet(cfg.JobTypes),
		strategies: toSet(cfg.Strategies),
		objectives: toSet(cfg.Objectives),
		toolchains: toSet(cfg.Toolchains),
		config:     cfg,
	}
}

// Vocabulary enumerates every token this encoder can emit for the given
// history bound.
func (e *Encoder) Vocabulary(maxSimilarRuns int) []string {
	return e.config.Vocabulary(maxSimilarRuns)
}

// Encode produces the token sequence for a planner input. Encoding is
// deterministic: logically identical inputs yield byte-identical sequences.
// The result always starts with <bos>, always ends with <eos>, and never
// exceeds maxTotalTokens.
func (e *Encoder) Encode(in *planner.Input, maxSimilarRuns, maxTokensPerHistoryEntry, maxTotalTokens int) []string {
	if maxSimilarRuns <= 0 {
		maxSimilarRuns = DefaultMaxSimilarRuns
	}
	if maxTokensPerHistoryEntry <= 0 {
		maxTokensPerHistoryEntry = DefaultMaxTokensPerHistoryEntry
	}
	// The sequence must fit BOS and EOS at minimum.
	if maxTotalTokens < 2 {
		maxTotalTokens = 2
	}

	tokens := make([]string, 0, maxTotalTokens)
	tokens = append(tokens, TokenBOS)

	// Universe section.
	tokens = append(tokens,
		kvToken("universe", in.UniverseID, e.universes),
		kvToken("job", in.JobType, e.jobTypes),
		kvToken("strat", in.UniverseDefaults.Strategy, e.strategies),
		kvToken("obj", in.UniverseDefaults.Objective, e.objectives),
		TokenSEP,
	)

	// Task section.
	ts := in.TaskSummary
	tokens = append(tokens,
		kvToken("priority", ts.Priority.String(), nil),
		kvToken("risk", ts.Risk.String(), nil),
		kvToken("size", ts.Size.String(), nil),
		kvToken("hint", ts.ToolHint, e.strategies),
	)
	tokens = append(tokens, fieldTags)
	tokens = append(tokens, bucketTokens(fieldTags, ts.Tags, 0)...)
	tokens = append(tokens, fieldKeywords)
	tokens = append(tokens, bucketTokens(fieldKeywords, ts.Keywords, 0)...)
	tokens = append(tokens, TokenSEP)

	// System-state section.
	state := in.SystemState
	tokens = append(tokens,
		kvToken("queue", queueBucket(state.QueueDepth), nil),
		kvToken("cells", cellBucket(state.RunningWorkcells), nil),
		kvToken("load", loadBucket(state.LoadFactor), nil),
	)
	tokens = append(tokens, fieldTools)
	tokens = append(tokens, e.toolTokens(state.AvailableToolchains)...)
	tokens = append(tokens, TokenSEP)

	// History section: most-recent-first, per-entry budget shrinking with
	// position so deeper history takes fewer tokens.
	for i, entry := range in.History {
		if i >= maxSimilarRuns {
			break
		}
		budget := maxTokensPerHistoryEntry - i
		if budget <= 0 {
			break
		}
		tokens = append(tokens, e.encodeHistoryEntry(i, entry, budget)...)
	}

	// Hard truncation, reserving the final slot for <eos>. A trailing
	// separator left by truncation is dropped.
	if len(tokens) > maxTotalTokens-1 {
		tokens = tokens[:maxTotalTokens-1]
	}
	if len(tokens) > 0 && tokens[len(tokens)-1] == TokenSEP {
		tokens = tokens[:len(tokens)-1]
	}
	return append(tokens, TokenEOS)
}

// encodeHistoryEntry emits one bounded history block.
func (e *Encoder) encodeHistoryEntry(position int, entry planner.RunSummary, budget int) []string {
	block := make([]string, 0, budget)
	block = append(block, fmt.Sprintf("hist[%d]", position))
	block = append(block, kvToken("outcome", entry.Outcome.String(), nil))
	if entry.Strategy != "" {
		block = append(block, kvToken("strat", entry.Strategy, e.strategies))
	}
	block = append(block, kvToken("dur", entry.DurationBucket, nil))

	if len(entry.FailingGates) > 0 {
		block = append(block, fieldGates)
		block = append(block, bucketTokens(fieldGates, entry.FailingGates, maxListPerHistoryEntry)...)
	}
	if len(entry.FailureCodes) > 0 {
		block = append(block, fieldCodes)
		block = append(block, bucketTokens(fieldCodes, entry.FailureCodes, maxListPerHistoryEntry)...)
	}

	if len(block) > budget {
		block = block[:budget]
	}
	return block
}

// bucketTokens hashes values into buckets and returns the sorted, unique
// bucket tokens. Sorting before emission is required for determinism: the
// value lists originate from sets whose iteration order is unspecified.
// A positive limit bounds the raw list before hashing.
func bucketTokens(field string, values []string, limit int) []string {
	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}

	seen := make(map[uint32]bool, len(values))
	buckets := make([]uint32, 0, len(values))
	for _, v := range values {
		b := hashBucket(field, v)
		if seen[b] {
			continue
		}
		seen[b] = true
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	tokens := make([]string, len(buckets))
	for i, b := range buckets {
		tokens[i] = bucketToken(field, b)
	}
	return tokens
}

// toolTokens emits the sorted value tokens for available toolchains.
func (e *Encoder) toolTokens(toolchains []string) []string {
	tokens := make([]string, 0, len(toolchains))
	seen := make(map[string]bool, len(toolchains))
	for _, tc := range toolchains {
		token := kvToken("tool", tc, e.toolchains)
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
