package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workcell-labs/foundry/internal/database"
)

type stubStore struct {
	stats   []database.ToolchainStat
	err     error
	gotKey  string
	gotCand []string
}

func (s *stubStore) RankToolchains(ctx context.Context, candidates []string, domain, jobType, featureKey string) ([]database.ToolchainStat, error) {
	s.gotKey = featureKey
	s.gotCand = candidates
	return s.stats, s.err
}

func toolchains(ranked []RankedCandidate) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Toolchain
	}
	return out
}

func TestOrder_StaticOnlyWithoutStore(t *testing.T) {
	r := NewRouter(nil)

	ranked := r.Order(context.Background(), []string{"blender", "godot", "comfyui"}, "asset", "model", nil)

	assert.Equal(t, []string{"blender", "godot", "comfyui"}, toolchains(ranked))
	assert.InDelta(t, 1.0, ranked[0].Static, 1e-9)
	assert.InDelta(t, 0.5, ranked[1].Static, 1e-9)
	assert.InDelta(t, 0.0, ranked[2].Static, 1e-9)
	for _, rc := range ranked {
		assert.InDelta(t, 0.5, rc.Empirical, 1e-9)
		assert.Zero(t, rc.Attempts)
	}
}

func TestOrder_EmpiricalDataReordersCandidates(t *testing.T) {
	store := &stubStore{stats: []database.ToolchainStat{
		{Toolchain: "blender", Attempts: 10, Successes: 1, SuccessRate: 0.1},
		{Toolchain: "godot", Attempts: 10, Successes: 10, SuccessRate: 1.0},
	}}
	r := NewRouter(store, WithBlendWeight(0.8))

	ranked := r.Order(context.Background(), []string{"blender", "godot"}, "asset", "model", nil)

	// static: blender 1.0, godot 0.0; combined with w=0.8:
	// blender 0.2*1.0 + 0.8*0.1 = 0.28, godot 0.2*0.0 + 0.8*1.0 = 0.80.
	require.Equal(t, []string{"godot", "blender"}, toolchains(ranked))
	assert.InDelta(t, 0.80, ranked[0].Combined, 1e-9)
	assert.InDelta(t, 0.28, ranked[1].Combined, 1e-9)
	assert.Equal(t, 10, ranked[0].Attempts)
}

func TestOrder_MissingHistoryIsNeutral(t *testing.T) {
	store := &stubStore{stats: []database.ToolchainStat{
		{Toolchain: "godot", Attempts: 4, Successes: 2, SuccessRate: 0.5},
	}}
	r := NewRouter(store, WithBlendWeight(0.5))

	ranked := r.Order(context.Background(), []string{"blender", "godot"}, "asset", "model", nil)

	// Both empirical scores are 0.5, so static priority decides.
	assert.Equal(t, []string{"blender", "godot"}, toolchains(ranked))
	assert.InDelta(t, 0.5, ranked[0].Empirical, 1e-9)
	assert.Zero(t, ranked[0].Attempts)
	assert.Equal(t, 4, ranked[1].Attempts)
}

func TestOrder_StoreErrorDegradesToStatic(t *testing.T) {
	store := &stubStore{err: errors.New("db locked")}
	r := NewRouter(store)

	ranked := r.Order(context.Background(), []string{"b", "a"}, "asset", "model", nil)

	assert.Equal(t, []string{"b", "a"}, toolchains(ranked))
}

func TestOrder_SingleCandidate(t *testing.T) {
	r := NewRouter(nil)

	ranked := r.Order(context.Background(), []string{"only"}, "asset", "model", nil)

	require.Len(t, ranked, 1)
	assert.InDelta(t, 1.0, ranked[0].Static, 1e-9)
}

func TestOrder_EmptyCandidates(t *testing.T) {
	assert.Nil(t, NewRouter(nil).Order(context.Background(), nil, "asset", "model", nil))
}

func TestOrder_TieKeepsStaticOrder(t *testing.T) {
	// Pure empirical weight with identical rates: stable sort keeps the
	// static priority order.
	store := &stubStore{stats: []database.ToolchainStat{
		{Toolchain: "a", Attempts: 2, Successes: 1, SuccessRate: 0.5},
		{Toolchain: "b", Attempts: 8, Successes: 4, SuccessRate: 0.5},
	}}
	r := NewRouter(store, WithBlendWeight(1.0))

	ranked := r.Order(context.Background(), []string{"b", "a"}, "asset", "model", nil)

	assert.Equal(t, []string{"b", "a"}, toolchains(ranked))
}

func TestOrder_PassesCanonicalFeatureKey(t *testing.T) {
	store := &stubStore{}
	r := NewRouter(store)

	r.Order(context.Background(), []string{"a"}, "asset", "model",
		map[string]string{"gpu": "true", "fmt": "glb"})

	assert.Equal(t, "fmt=glb;gpu=true", store.gotKey)
	assert.Equal(t, []string{"a"}, store.gotCand)
}

func TestFeatureKey(t *testing.T) {
	tests := []struct {
		name     string
		features map[string]string
		want     string
	}{
		{name: "nil", features: nil, want: ""},
		{name: "empty", features: map[string]string{}, want: ""},
		{name: "single", features: map[string]string{"k": "v"}, want: "k=v"},
		{
			name:     "sorted by key",
			features: map[string]string{"b": "2", "a": "1", "c": "3"},
			want:     "a=1;b=2;c=3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FeatureKey(tt.features))
		})
	}
}

func TestNewRuleSet_Validation(t *testing.T) {
	_, err := NewRuleSet(nil, nil)
	assert.Error(t, err)

	_, err = NewRuleSet([]Rule{{Name: "empty"}}, nil)
	assert.Error(t, err)

	_, err = NewRuleSet([]Rule{{Name: "neg", Toolchains: []string{"a"}, Parallelism: -1}}, nil)
	assert.Error(t, err)

	_, err = NewRuleSet(nil, []string{"a"})
	assert.NoError(t, err)
}

func TestResolve_FirstMatchWins(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		{Name: "render", Domain: "asset", JobType: "render", Toolchains: []string{"blender"}},
		{Name: "asset-any", Domain: "asset", Toolchains: []string{"godot"}, Fallbacks: []string{"blender"}},
	}, []string{"comfyui"})
	require.NoError(t, err)

	res := rs.Resolve("asset", "render", nil)
	assert.Equal(t, "render", res.Rule)
	assert.Equal(t, []string{"blender"}, res.Toolchains)

	res = rs.Resolve("asset", "bake", nil)
	assert.Equal(t, "asset-any", res.Rule)
	assert.Equal(t, []string{"godot", "blender"}, res.Toolchains)
}

func TestResolve_TagSubsetMatch(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		{Name: "gpu", Tags: []string{"gpu", "large"}, Toolchains: []string{"blender"}},
	}, []string{"comfyui"})
	require.NoError(t, err)

	res := rs.Resolve("asset", "render", []string{"large", "gpu", "extra"})
	assert.Equal(t, "gpu", res.Rule)

	res = rs.Resolve("asset", "render", []string{"gpu"})
	assert.Empty(t, res.Rule)
	assert.Equal(t, []string{"comfyui"}, res.Toolchains)
}

func TestResolve_FallbacksDeduplicated(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		{Name: "r", Toolchains: []string{"a", "b"}, Fallbacks: []string{"b", "c", "a"}},
	}, nil)
	require.NoError(t, err)

	res := rs.Resolve("any", "any", nil)
	assert.Equal(t, []string{"a", "b", "c"}, res.Toolchains)
}

func TestResolve_SpeculateDefaultsParallelism(t *testing.T) {
	rs, err := NewRuleSet([]Rule{
		{Name: "spec", Speculate: true, Toolchains: []string{"a", "b", "c"}},
	}, nil)
	require.NoError(t, err)

	res := rs.Resolve("any", "any", nil)
	assert.True(t, res.Speculate)
	assert.Equal(t, 3, res.Parallelism)
}
