package actionspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() Spec {
	return Spec{
		Domain:         "code",
		Strategies:     []string{"solo", "speculate_vote", "iterate_refine"},
		CandidatesBins: []int{1, 2, 4},
		MinutesBins:    []int{15, 30, 60},
		IterationsBins: []int{1, 2, 3},
		StrategyRules: map[string]StrategyRule{
			"solo":           {CandidatesNA: true, IterationsNA: true},
			"speculate_vote": {MinCandidates: 2},
			"iterate_refine": {CandidatesNA: true, MinIterations: 2},
		},
	}
}

func TestNew_ConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"empty domain", func(s *Spec) { s.Domain = "" }},
		{"no strategies", func(s *Spec) { s.Strategies = nil }},
		{"duplicate strategy", func(s *Spec) { s.Strategies = []string{"solo", "solo"} }},
		{"empty strategy name", func(s *Spec) { s.Strategies = []string{""} }},
		{"no minutes bins", func(s *Spec) { s.MinutesBins = nil }},
		{"non-positive bin", func(s *Spec) { s.CandidatesBins = []int{0, 2} }},
		{"rule for unknown strategy", func(s *Spec) {
			s.StrategyRules = map[string]StrategyRule{"mystery": {}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			tt.mutate(&spec)
			_, err := New(spec)
			assert.Error(t, err)
		})
	}
}

func TestSpace_BinsForIsSortedCopy(t *testing.T) {
	spec := testSpec()
	spec.MinutesBins = []int{60, 15, 30}
	space, err := New(spec)
	require.NoError(t, err)

	bins := space.BinsFor(KindMinutes)
	assert.Equal(t, []int{15, 30, 60}, bins)

	// Mutating the returned slice must not affect the space.
	bins[0] = 999
	assert.Equal(t, []int{15, 30, 60}, space.BinsFor(KindMinutes))
}

func TestSpace_NearestBin(t *testing.T) {
	space, err := New(testSpec())
	require.NoError(t, err)

	intptr := func(v int) *int { return &v }

	tests := []struct {
		name string
		kind BinKind
		raw  *int
		want int
	}{
		{"nil maps to NA", KindCandidates, nil, NA},
		{"exact match", KindCandidates, intptr(2), 2},
		{"below smallest", KindCandidates, intptr(0), 1},
		{"above largest", KindCandidates, intptr(100), 4},
		{"tie breaks to smaller bin", KindCandidates, intptr(3), 2},
		{"minutes nearest", KindMinutes, intptr(40), 30},
		{"minutes tie to smaller", KindMinutes, intptr(45), 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, space.NearestBin(tt.kind, tt.raw))
		})
	}
}

func TestSpace_IsValid(t *testing.T) {
	space, err := New(testSpec())
	require.NoError(t, err)

	tests := []struct {
		name     string
		strategy string
		c, m, i  int
		want     bool
	}{
		{"solo with NA budgets", "solo", NA, 30, NA, true},
		{"solo rejects concrete candidates", "solo", 1, 30, NA, false},
		{"solo rejects concrete iterations", "solo", NA, 30, 2, false},
		{"speculate_vote needs 2+ candidates", "speculate_vote", 1, 30, NA, false},
		{"speculate_vote with 2 candidates", "speculate_vote", 2, 30, NA, true},
		{"speculate_vote NA candidates allowed by min rule", "speculate_vote", NA, 30, NA, true},
		{"iterate_refine needs 2+ iterations", "iterate_refine", NA, 60, 1, false},
		{"iterate_refine valid", "iterate_refine", NA, 60, 2, true},
		{"unknown strategy", "mystery", NA, 30, NA, false},
		{"bin not in set", "speculate_vote", 3, 30, NA, false},
		{"minutes not in set", "solo", NA, 45, NA, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, space.IsValid(tt.strategy, tt.c, tt.m, tt.i))
		})
	}
}

func TestCatalog(t *testing.T) {
	catalog, err := NewCatalog([]Spec{testSpec()})
	require.NoError(t, err)

	space, err := catalog.SpaceFor("code")
	require.NoError(t, err)
	assert.Equal(t, "code", space.Domain())

	_, err = catalog.SpaceFor("asset")
	assert.Error(t, err)

	assert.True(t, catalog.IsValid("code", "solo", NA, 30, NA))
	assert.False(t, catalog.IsValid("asset", "solo", NA, 30, NA))
}

func TestCatalog_DuplicateDomain(t *testing.T) {
	_, err := NewCatalog([]Spec{testSpec(), testSpec()})
	assert.Error(t, err)
}

func TestSpace_Snapshot(t *testing.T) {
	space, err := New(testSpec())
	require.NoError(t, err)

	snap := space.Snapshot()
	assert.Equal(t, "code", snap.Domain)
	assert.Equal(t, []string{"iterate_refine", "solo", "speculate_vote"}, snap.Strategies)
	assert.Equal(t, []int{1, 2, 4}, snap.CandidatesBins)
}
