package places

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/goccy/go-json"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

const (
	// ProviderYelp labels Yelp ratings and metrics.
	ProviderYelp = "yelp"

	// DefaultYelpBaseURL is the Yelp Fusion endpoint.
	DefaultYelpBaseURL = "https://api.yelp.com"

	// DefaultMatchRadius bounds how far a Yelp listing may be from the
	// place it is matched to.
	DefaultMatchRadius = 250

	// DefaultMinSimilarity is the name similarity a match needs.
	DefaultMinSimilarity = 0.75
)

// YelpConfig configures YelpClient.
type YelpConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key" validate:"required"`
	BaseURL string `yaml:"base_url" json:"base_url" validate:"omitempty,url"`

	MatchRadius   int     `yaml:"match_radius" json:"match_radius" validate:"min=0,max=40000"`
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity" validate:"min=0,max=1"`
	Limits        Limits  `yaml:"limits" json:"limits"`

	HTTPClient *http.Client `yaml:"-" json:"-" validate:"-"`
}

// YelpMatch is the Yelp listing matched to a place.
type YelpMatch struct {
	ID          string
	Name        string
	Rating      float64
	ReviewCount int
	Price       domain.PriceTier
	Phone       string
	URL         string
	Categories  []string
}

// Source returns the match as a rating source.
func (m YelpMatch) Source() domain.RatingSource {
	return domain.RatingSource{Provider: ProviderYelp, Rating: m.Rating, Count: m.ReviewCount}
}

// YelpClient matches places to Yelp businesses.
type YelpClient struct {
	cfg  YelpConfig
	http *transport
}

// NewYelpClient validates cfg and builds a client.
func NewYelpClient(cfg YelpConfig, metrics ports.MetricsCollector) (*YelpClient, error) {
	if err := configValidator.Struct(cfg); err != nil {
		return nil, ports.NewConfigError("places.yelp", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYelpBaseURL
	}
	if cfg.MatchRadius == 0 {
		cfg.MatchRadius = DefaultMatchRadius
	}
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	return &YelpClient{cfg: cfg, http: newTransport(ProviderYelp, cfg.Limits, cfg.HTTPClient, metrics)}, nil
}

type yelpBusiness struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Price       string  `json:"price"`
	Phone       string  `json:"display_phone"`
	URL         string  `json:"url"`
	Categories  []struct {
		Alias string `json:"alias"`
		Title string `json:"title"`
	} `json:"categories"`
}

type yelpSearchResponse struct {
	Businesses []yelpBusiness `json:"businesses"`
}

// Match finds the Yelp business for c by name near its location. The bool
// is false when no listing is similar enough.
func (c *YelpClient) Match(ctx context.Context, candidate domain.RestaurantCandidate) (YelpMatch, bool, error) {
	if strings.TrimSpace(candidate.Name) == "" {
		return YelpMatch{}, false, nil
	}

	q := url.Values{}
	q.Set("term", candidate.Name)
	q.Set("latitude", strconv.FormatFloat(candidate.Location.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(candidate.Location.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(c.cfg.MatchRadius))
	q.Set("categories", "restaurants")
	q.Set("limit", "3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v3/businesses/search?"+q.Encode(), nil)
	if err != nil {
		return YelpMatch{}, false, fmt.Errorf("build yelp search: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	data, err := c.http.do(ctx, "business_search", req)
	if err != nil {
		return YelpMatch{}, false, err
	}

	var resp yelpSearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return YelpMatch{}, false, ports.NewSourceError(ProviderYelp, "business_search", http.StatusOK,
			fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err))
	}

	best, bestScore := -1, 0.0
	for i, b := range resp.Businesses {
		if s := nameSimilarity(candidate.Name, b.Name); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < c.cfg.MinSimilarity {
		return YelpMatch{}, false, nil
	}
	return toMatch(resp.Businesses[best]), true, nil
}

func toMatch(b yelpBusiness) YelpMatch {
	m := YelpMatch{
		ID:          b.ID,
		Name:        b.Name,
		Rating:      b.Rating,
		ReviewCount: b.ReviewCount,
		Price:       yelpPriceTier(b.Price),
		Phone:       b.Phone,
		URL:         b.URL,
	}
	for _, cat := range b.Categories {
		if cat.Title != "" {
			m.Categories = append(m.Categories, cat.Title)
		}
	}
	return m
}

// yelpPriceTier counts the dollar signs in a Yelp price string. A listing
// without one stays unspecified so it gets no price term when scored.
func yelpPriceTier(price string) domain.PriceTier {
	n := strings.Count(price, "$")
	if n == 0 {
		return domain.PriceUnspecified
	}
	return domain.PriceTier(min(n, int(domain.PriceVeryExpensive)))
}

// nameSimilarity is 1 minus the case-folded edit distance over the longer
// name's rune count.
func nameSimilarity(a, b string) float64 {
	caser := cases.Fold()
	a = strings.TrimSpace(caser.String(a))
	b = strings.TrimSpace(caser.String(b))
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}
