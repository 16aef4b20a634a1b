package planner

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// Hash computes the blake3 content hash of the document over its canonical
// JSON form. The hash is stable across re-serialization: key order is
// canonicalized and every set-valued field is sorted at build time, so
// identical logical content always produces an identical hash. It links the
// planner action back to its input for audit and offline evaluation.
func (in *Input) Hash() (string, error) {
	canonical, err := canonicalize(in)
	if err != nil {
		return "", fmt.Errorf("canonicalize planner input: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash planner input: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// canonicalize produces deterministic JSON: the document is round-tripped
// through a generic map and re-marshaled with recursively sorted keys.
func canonicalize(in *Input) ([]byte, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	return json.Marshal(sortKeys(generic))
}

// sortKeys recursively sorts map keys for stable JSON output.
func sortKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sorted := make(map[string]interface{}, len(val))
		for _, k := range keys {
			sorted[k] = sortKeys(val[k])
		}
		return sorted

	case []interface{}:
		for i, item := range val {
			val[i] = sortKeys(item)
		}
		return val

	default:
		return v
	}
}
