package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tablefit/internal/domain"
)

// TestGenerateGuestResponses verifies determinism and that every
// generated response is well formed.
func TestGenerateGuestResponses(t *testing.T) {
	vocab := domain.DefaultVocabulary()

	first := GenerateGuestResponses("evt-1", 25, 7, vocab)
	second := GenerateGuestResponses("evt-1", 25, 7, vocab)
	require.Len(t, first, 25)
	assert.Equal(t, first, second, "the same seed should give the same guests.")
	assert.NotEqual(t, first, GenerateGuestResponses("evt-1", 25, 8, vocab))

	for _, r := range first {
		assert.Equal(t, "evt-1", r.EventID)
		assert.NotEmpty(t, r.PreferredCuisines)
		assert.LessOrEqual(t, len(r.PreferredCuisines), 3)
		for _, c := range r.AntiPreferredCuisines {
			assert.NotContains(t, r.PreferredCuisines, c, "a guest never vetoes a cuisine they prefer.")
		}
		for _, c := range append(r.PreferredCuisines, r.AntiPreferredCuisines...) {
			assert.NotEqual(t, domain.UnmappedCuisine, vocab.Category(c))
		}
		require.NotEmpty(t, r.AcceptablePriceRanges)
		for _, p := range r.AcceptablePriceRanges {
			assert.True(t, vocab.IsPriceToken(p))
		}
	}
}
