package places

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

const (
	// ProviderGoogle labels Google Places ratings and metrics.
	ProviderGoogle = "google"

	// DefaultGoogleBaseURL is the Places API (New) endpoint.
	DefaultGoogleBaseURL = "https://places.googleapis.com"

	// DefaultRadiusMeters is used for areas without a radius.
	DefaultRadiusMeters = 1500

	maxRadiusMeters  = 50000
	maxResultsPerReq = 20
)

// googleFieldMask lists the place fields requested from searchNearby.
var googleFieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.location",
	"places.types",
	"places.primaryType",
	"places.priceLevel",
	"places.rating",
	"places.userRatingCount",
	"places.nationalPhoneNumber",
	"places.websiteUri",
	"places.servesVegetarianFood",
	"places.accessibilityOptions",
	"places.delivery",
	"places.dineIn",
	"places.takeout",
}, ",")

var configValidator = validator.New()

// GoogleConfig configures GoogleClient.
type GoogleConfig struct {
	APIKey  string `yaml:"api_key" json:"api_key" validate:"required"`
	BaseURL string `yaml:"base_url" json:"base_url" validate:"omitempty,url"`

	// MaxResults caps the places returned per area, at most 20.
	MaxResults int    `yaml:"max_results" json:"max_results" validate:"min=0,max=20"`
	Limits     Limits `yaml:"limits" json:"limits"`

	HTTPClient *http.Client `yaml:"-" json:"-" validate:"-"`
}

// GoogleClient runs nearby restaurant searches against Google Places.
type GoogleClient struct {
	cfg   GoogleConfig
	vocab *domain.Vocabulary
	http  *transport
}

// NewGoogleClient validates cfg and builds a client. vocab decides which
// place types count as cuisines.
func NewGoogleClient(cfg GoogleConfig, vocab *domain.Vocabulary, metrics ports.MetricsCollector) (*GoogleClient, error) {
	if err := configValidator.Struct(cfg); err != nil {
		return nil, ports.NewConfigError("places.google", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleBaseURL
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = maxResultsPerReq
	}
	if vocab == nil {
		vocab = domain.DefaultVocabulary()
	}
	return &GoogleClient{
		cfg:   cfg,
		vocab: vocab,
		http:  newTransport(ProviderGoogle, cfg.Limits, cfg.HTTPClient, metrics),
	}, nil
}

type googleLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type nearbyRequest struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LocationRestriction struct {
		Circle struct {
			Center googleLatLng `json:"center"`
			Radius float64      `json:"radius"`
		} `json:"circle"`
	} `json:"locationRestriction"`
}

type googlePlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress     string       `json:"formattedAddress"`
	Location             googleLatLng `json:"location"`
	Types                []string     `json:"types"`
	PrimaryType          string       `json:"primaryType"`
	PriceLevel           string       `json:"priceLevel"`
	Rating               float64      `json:"rating"`
	UserRatingCount      int          `json:"userRatingCount"`
	NationalPhoneNumber  string       `json:"nationalPhoneNumber"`
	WebsiteURI           string       `json:"websiteUri"`
	ServesVegetarianFood bool         `json:"servesVegetarianFood"`
	AccessibilityOptions struct {
		WheelchairAccessibleEntrance bool `json:"wheelchairAccessibleEntrance"`
	} `json:"accessibilityOptions"`
	Delivery bool `json:"delivery"`
	DineIn   bool `json:"dineIn"`
	Takeout  bool `json:"takeout"`
}

type nearbyResponse struct {
	Places []googlePlace `json:"places"`
}

// SearchNearby returns the restaurants within area.
func (c *GoogleClient) SearchNearby(ctx context.Context, area domain.SearchArea) ([]domain.RestaurantCandidate, error) {
	var body nearbyRequest
	body.IncludedTypes = []string{"restaurant"}
	body.MaxResultCount = c.cfg.MaxResults
	body.LocationRestriction.Circle.Center = googleLatLng{Latitude: area.Lat, Longitude: area.Lng}
	body.LocationRestriction.Circle.Radius = radius(area.RadiusMeters)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode nearby search: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/places:searchNearby", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build nearby search: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Goog-FieldMask", googleFieldMask)

	data, err := c.http.do(ctx, "search_nearby", req)
	if err != nil {
		return nil, err
	}

	var resp nearbyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, ports.NewSourceError(ProviderGoogle, "search_nearby", http.StatusOK,
			fmt.Errorf("%w: %w", ports.ErrInvalidResponse, err))
	}

	out := make([]domain.RestaurantCandidate, 0, len(resp.Places))
	for _, p := range resp.Places {
		if p.ID == "" {
			continue
		}
		out = append(out, c.toCandidate(p))
	}
	return out, nil
}

func (c *GoogleClient) toCandidate(p googlePlace) domain.RestaurantCandidate {
	candidate := domain.RestaurantCandidate{
		PlaceID:  p.ID,
		Name:     p.DisplayName.Text,
		Address:  p.FormattedAddress,
		Location: domain.Location{Lat: p.Location.Latitude, Lng: p.Location.Longitude},
		Phone:    p.NationalPhoneNumber,
		Website:  p.WebsiteURI,
		Cuisines: c.cuisines(p),
		Features: domain.Features{
			ServesVegetarian:     p.ServesVegetarianFood,
			WheelchairAccessible: p.AccessibilityOptions.WheelchairAccessibleEntrance,
			Delivery:             p.Delivery,
			DineIn:               p.DineIn,
			Takeout:              p.Takeout,
		},
		PriceLevel: googlePriceTier(p.PriceLevel),
	}
	if p.ServesVegetarianFood {
		candidate.Accommodations = []string{"Vegetarian"}
	}
	return candidate.WithRatingSources(domain.RatingSource{
		Provider: ProviderGoogle,
		Rating:   p.Rating,
		Count:    p.UserRatingCount,
	})
}

// cuisines keeps the place types the vocabulary recognizes, primary type
// first.
func (c *GoogleClient) cuisines(p googlePlace) []string {
	out := make([]string, 0, len(p.Types)+1)
	seen := make(map[string]struct{}, len(p.Types)+1)
	for _, t := range append([]string{p.PrimaryType}, p.Types...) {
		if !c.vocab.IsCategory(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func googlePriceTier(level string) domain.PriceTier {
	switch level {
	case "PRICE_LEVEL_FREE", "PRICE_LEVEL_INEXPENSIVE":
		return domain.PriceInexpensive
	case "PRICE_LEVEL_MODERATE":
		return domain.PriceModerate
	case "PRICE_LEVEL_EXPENSIVE":
		return domain.PriceExpensive
	case "PRICE_LEVEL_VERY_EXPENSIVE":
		return domain.PriceVeryExpensive
	default:
		return domain.PriceUnspecified
	}
}

func radius(meters float64) float64 {
	switch {
	case meters <= 0:
		return DefaultRadiusMeters
	case meters > maxRadiusMeters:
		return maxRadiusMeters
	default:
		return meters
	}
}
