// Package tokenizer deterministically encodes planner-input documents into
// fixed-vocabulary token sequences for model consumption. The vocabulary is
// enumerable independent of any particular input so it can be frozen at
// model-build time; unbounded-cardinality fields are embedded through
// hash bucketing.
package tokenizer

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/workcell-labs/foundry/internal/planner"
	"github.com/workcell-labs/foundry/internal/types"
)

// Special control tokens.
const (
	TokenBOS = "<bos>"
	TokenEOS = "<eos>"
	TokenSEP = "<sep>"

	// valueUnknown stands in for any value outside the configured sets.
	valueUnknown = "<unk>"

	// valueNone stands in for an absent optional value.
	valueNone = "<none>"
)

// BucketCount is the fixed number of hash buckets per bucketed field.
const BucketCount = 1024

// HashVersion identifies the bucketing hash function. Changing the hash (or
// this label) invalidates any previously trained model.
const HashVersion = "hb1"

// Bucketed field key tokens.
const (
	fieldTags     = "tags"
	fieldKeywords = "keywords"
	fieldGates    = "gates"
	fieldCodes    = "codes"
	fieldTools    = "tools"
)

// Coarse load ladders for system-state features. Fixed so the vocabulary
// stays enumerable.
var queueBuckets = []string{"q0", "q1_4", "q5_16", "q17_64", "q65p"}
var cellBuckets = []string{"c0", "c1_4", "c5_16", "c17p"}
var loadBuckets = []string{"idle", "low", "medium", "high"}

// bucketToken builds the token for one hash bucket of a field.
func bucketToken(field string, bucket uint32) string {
	return fmt.Sprintf("%s#%d", field, bucket)
}

// hashBucket maps a raw string into a fixed bucket. The hash is versioned
// blake3: the digest of "version:field:value" reduced modulo BucketCount.
func hashBucket(field, value string) uint32 {
	sum := blake3.Sum256([]byte(HashVersion + ":" + field + ":" + value))
	return binary.BigEndian.Uint32(sum[:4]) % BucketCount
}

// kvToken builds a key/value token, substituting <unk> for values outside
// the known set.
func kvToken(key, value string, known map[string]bool) string {
	if value == "" {
		return key + "=" + valueNone
	}
	if known != nil && !known[value] {
		return key + "=" + valueUnknown
	}
	return key + "=" + value
}

// Config fixes the enumerable value sets of the tokenizer. It is derived
// from static deployment configuration, never from a particular input.
type Config struct {
	Universes  []string
	JobTypes   []string
	Strategies []string
	Objectives []string
	Toolchains []string
}

// Vocabulary enumerates every token the encoder can emit for the given
// bounds, independent of any input. The result is sorted.
func (c Config) Vocabulary(maxSimilarRuns int) []string {
	var vocab []string

	vocab = append(vocab, TokenBOS, TokenEOS, TokenSEP)
	vocab = append(vocab, fieldTags, fieldKeywords, fieldGates, fieldCodes, fieldTools)

	addKV := func(key string, values []string, withNone bool) {
		for _, v := range values {
			vocab = append(vocab, key+"="+v)
		}
		vocab = append(vocab, key+"="+valueUnknown)
		if withNone {
			vocab = append(vocab, key+"="+valueNone)
		}
	}

	addKV("universe", c.Universes, true)
	addKV("job", c.JobTypes, true)
	addKV("strat", c.Strategies, true)
	addKV("obj", c.Objectives, true)
	addKV("hint", c.Strategies, true)
	addKV("tool", c.Toolchains, false)

	addKV("priority", []string{
		types.PriorityLow.String(), types.PriorityMedium.String(),
		types.PriorityHigh.String(), types.PriorityCritical.String(),
	}, false)
	addKV("risk", []string{
		types.RiskLow.String(), types.RiskMedium.String(), types.RiskHigh.String(),
	}, false)
	addKV("size", []string{
		types.SizeSmall.String(), types.SizeMedium.String(), types.SizeLarge.String(),
	}, false)
	addKV("outcome", []string{
		types.OutcomePassed.String(), types.OutcomeFailed.String(),
		types.OutcomeTimedOut.String(), types.OutcomeAborted.String(),
		types.OutcomeUnknown.String(),
	}, false)
	addKV("dur", planner.DurationBuckets(), false)

	addKV("queue", queueBuckets, false)
	addKV("cells", cellBuckets, false)
	addKV("load", loadBuckets, false)

	for i := 0; i < maxSimilarRuns; i++ {
		vocab = append(vocab, fmt.Sprintf("hist[%d]", i))
	}

	for _, field := range []string{fieldTags, fieldKeywords, fieldGates, fieldCodes} {
		for b := uint32(0); b < BucketCount; b++ {
			vocab = append(vocab, bucketToken(field, b))
		}
	}

	sort.Strings(vocab)
	return vocab
}

// queueBucket maps a queue depth onto its ladder label.
func queueBucket(depth int) string {
	switch {
	case depth <= 0:
		return queueBuckets[0]
	case depth <= 4:
		return queueBuckets[1]
	case depth <= 16:
		return queueBuckets[2]
	case depth <= 64:
		return queueBuckets[3]
	default:
		return queueBuckets[4]
	}
}

// cellBucket maps a running-workcell count onto its ladder label.
func cellBucket(count int) string {
	switch {
	case count <= 0:
		return cellBuckets[0]
	case count <= 4:
		return cellBuckets[1]
	case count <= 16:
		return cellBuckets[2]
	default:
		return cellBuckets[3]
	}
}

// loadBucket maps a load factor onto its ladder label.
func loadBucket(load float64) string {
	switch {
	case load < 0.1:
		return loadBuckets[0]
	case load < 0.5:
		return loadBuckets[1]
	case load < 0.8:
		return loadBuckets[2]
	default:
		return loadBuckets[3]
	}
}
