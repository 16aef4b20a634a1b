package planner

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultMaxKeywords bounds the extracted keyword list.
const DefaultMaxKeywords = 12

// minKeywordLength drops short tokens that carry no signal.
const minKeywordLength = 3

// stopwords are excluded from keyword extraction. The set is fixed; changing
// it changes planner-input hashes and must be versioned with the schema.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "when": true, "then": true,
	"should": true, "would": true, "could": true, "have": true, "has": true,
	"are": true, "was": true, "were": true, "will": true, "can": true,
	"not": true, "but": true, "all": true, "its": true, "also": true,
	"use": true, "using": true, "used": true, "add": true, "new": true,
}

// ExtractKeywords produces a bounded, deterministic keyword list from free
// text. Tokens are case-normalized and split on non-alphanumeric runes;
// ordering is by occurrence count descending, then lexical ascending, so the
// result is a pure function of the input text.
func ExtractKeywords(text string, max int) []string {
	if max <= 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, token := range tokenizeWords(text) {
		if len(token) < minKeywordLength || stopwords[token] {
			continue
		}
		counts[token]++
	}
	if len(counts) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(counts))
	for word := range counts {
		keywords = append(keywords, word)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > max {
		keywords = keywords[:max]
	}
	return keywords
}

// tokenizeWords lowercases and splits text on non-alphanumeric runes.
func tokenizeWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
