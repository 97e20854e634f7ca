package places

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// NearbySearcher lists the restaurants in one area.
type NearbySearcher interface {
	SearchNearby(ctx context.Context, area domain.SearchArea) ([]domain.RestaurantCandidate, error)
}

// ListingMatcher finds a secondary listing for a place.
type ListingMatcher interface {
	Match(ctx context.Context, c domain.RestaurantCandidate) (YelpMatch, bool, error)
}

// DefaultEnrichConcurrency bounds concurrent Yelp lookups.
const DefaultEnrichConcurrency = 4

// AreaSearchSource implements ports.CandidateSource by searching every
// area, merging duplicates and attaching Yelp ratings.
type AreaSearchSource struct {
	search      NearbySearcher
	match       ListingMatcher
	vocab       *domain.Vocabulary
	logger      *zap.Logger
	concurrency int
}

var _ ports.CandidateSource = (*AreaSearchSource)(nil)

// NewAreaSearchSource builds a source. match may be nil to skip
// enrichment.
func NewAreaSearchSource(
	search NearbySearcher,
	match ListingMatcher,
	vocab *domain.Vocabulary,
	logger *zap.Logger,
) *AreaSearchSource {
	if vocab == nil {
		vocab = domain.DefaultVocabulary()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AreaSearchSource{
		search:      search,
		match:       match,
		vocab:       vocab,
		logger:      logger,
		concurrency: DefaultEnrichConcurrency,
	}
}

// FindCandidates searches all areas concurrently. Any area failing fails
// the search. Yelp enrichment is best effort.
func (s *AreaSearchSource) FindCandidates(ctx context.Context, areas []domain.SearchArea) ([]domain.RestaurantCandidate, error) {
	perArea := make([][]domain.RestaurantCandidate, len(areas))

	g, gctx := errgroup.WithContext(ctx)
	for i, area := range areas {
		g.Go(func() error {
			found, err := s.search.SearchNearby(gctx, area)
			if err != nil {
				return fmt.Errorf("search area %q: %w", area.Name, err)
			}
			perArea[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.RestaurantCandidate
	for _, found := range perArea {
		all = append(all, found...)
	}
	merged := domain.MergeCandidates(all)

	if s.match == nil || len(merged) == 0 {
		return merged, nil
	}
	if err := s.enrich(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (s *AreaSearchSource) enrich(ctx context.Context, candidates []domain.RestaurantCandidate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range candidates {
		g.Go(func() error {
			m, ok, err := s.match.Match(gctx, candidates[i])
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("yelp match failed",
					zap.String("place_id", candidates[i].PlaceID),
					zap.Error(err))
				return nil
			}
			if ok {
				candidates[i] = s.attach(candidates[i], m)
			}
			return nil
		})
	}
	return g.Wait()
}

// attach folds a Yelp listing into c. Price and contact details only fill
// gaps.
func (s *AreaSearchSource) attach(c domain.RestaurantCandidate, m YelpMatch) domain.RestaurantCandidate {
	sources := append(c.Sources[:len(c.Sources):len(c.Sources)], m.Source())
	c = c.WithRatingSources(sources...)

	cuisines := append([]string(nil), c.Cuisines...)
	for _, title := range m.Categories {
		if cat := s.vocab.Category(title); cat != domain.UnmappedCuisine {
			cuisines = append(cuisines, cat)
		}
	}
	c.Cuisines = cuisines

	if c.PriceLevel == domain.PriceUnspecified {
		c.PriceLevel = m.Price
	}
	if c.Phone == "" {
		c.Phone = m.Phone
	}
	if c.Website == "" {
		c.Website = m.URL
	}
	return c
}
