package testutils

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/ahrav/go-tablefit/internal/domain"
)

// GenerateGuestResponses builds n plausible guest responses for eventID
// from vocab. The same seed always yields the same responses.
func GenerateGuestResponses(eventID string, n int, seed uint64, vocab *domain.Vocabulary) []domain.GuestResponse {
	if vocab == nil {
		vocab = domain.DefaultVocabulary()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	labels := vocab.Labels()
	restrictions := vocab.Restrictions()
	prices := []string{"$", "$$", "$$$", "$$$$"}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	out := make([]domain.GuestResponse, 0, n)
	for i := range n {
		perm := rng.Perm(len(labels))
		nPreferred := 1 + rng.IntN(3)
		nVetoed := rng.IntN(3)

		resp := domain.GuestResponse{
			ID:                    fmt.Sprintf("%s-guest-%03d", eventID, i+1),
			EventID:               eventID,
			Name:                  fmt.Sprintf("Guest %03d", i+1),
			Email:                 fmt.Sprintf("guest%03d@example.com", i+1),
			DietaryRestrictions:   []string{},
			PreferredCuisines:     make([]string, 0, nPreferred),
			AntiPreferredCuisines: make([]string, 0, nVetoed),
			SubmittedAt:           base.Add(time.Duration(i) * time.Minute),
		}
		for _, j := range perm[:nPreferred] {
			resp.PreferredCuisines = append(resp.PreferredCuisines, labels[j])
		}
		for _, j := range perm[nPreferred : nPreferred+nVetoed] {
			resp.AntiPreferredCuisines = append(resp.AntiPreferredCuisines, labels[j])
		}
		if len(restrictions) > 0 && rng.IntN(5) == 0 {
			resp.DietaryRestrictions = append(resp.DietaryRestrictions, restrictions[rng.IntN(len(restrictions))])
		}

		lo := rng.IntN(len(prices))
		hi := min(lo+rng.IntN(2), len(prices)-1)
		resp.AcceptablePriceRanges = slices.Clone(prices[lo : hi+1])

		out = append(out, resp)
	}
	return out
}
