package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tablefit/internal/domain"
)

func resultsWithScores(scores ...float64) []domain.RankingResult {
	out := make([]domain.RankingResult, len(scores))
	for i, s := range scores {
		out[i] = domain.RankingResult{
			Restaurant: domain.RestaurantCandidate{PlaceID: string(rune('a' + i))},
			Score:      s,
		}
	}
	return out
}

func placeIDs(results []domain.RankingResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Restaurant.PlaceID
	}
	return ids
}

// TestRankUnit_Execute verifies sorting, stability and truncation.
func TestRankUnit_Execute(t *testing.T) {
	tests := []struct {
		name       string
		maxResults int
		scores     []float64
		want       []string
	}{
		{name: "empty", scores: nil, want: []string{}},
		{name: "descending", scores: []float64{1, 3, 2}, want: []string{"b", "c", "a"}},
		{name: "ties keep input order", scores: []float64{2, 5, 2, 5}, want: []string{"b", "d", "a", "c"}},
		{name: "negative scores", scores: []float64{-10, 0, -5}, want: []string{"b", "c", "a"}},
		{name: "truncated", maxResults: 2, scores: []float64{1, 3, 2}, want: []string{"b", "c"}},
		{name: "limit above length", maxResults: 10, scores: []float64{1, 2}, want: []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewRankUnit("rank", RankConfig{MaxResults: tt.maxResults})
			require.NoError(t, err)

			state := domain.With(domain.NewState(), domain.KeyResults, resultsWithScores(tt.scores...))
			out, err := u.Execute(context.Background(), state)
			require.NoError(t, err)

			results, ok := domain.Get(out, domain.KeyResults)
			require.True(t, ok)
			assert.Equal(t, tt.want, placeIDs(results))
		})
	}
}

// TestRankUnit_Errors covers construction and missing input.
func TestRankUnit_Errors(t *testing.T) {
	_, err := NewRankUnit("", DefaultRankConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)

	_, err = NewRankUnit("rank", RankConfig{MaxResults: -1})
	assert.Error(t, err)

	u, err := NewRankFromConfig("rank", map[string]any{"max_results": 3}, Dependencies{})
	require.NoError(t, err)
	assert.NoError(t, u.Validate())

	_, err = u.Execute(context.Background(), domain.NewState())
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}
