package domain

import "slices"

// Features are the boolean capability flags reported by the places
// provider.
type Features struct {
	ServesVegetarian     bool `json:"serves_vegetarian"`
	WheelchairAccessible bool `json:"wheelchair_accessible"`
	Delivery             bool `json:"delivery"`
	DineIn               bool `json:"dine_in"`
	Takeout              bool `json:"takeout"`
}

// Map exposes the flags by their wire names.
func (f Features) Map() map[string]bool {
	return map[string]bool{
		"serves_vegetarian":     f.ServesVegetarian,
		"wheelchair_accessible": f.WheelchairAccessible,
		"delivery":              f.Delivery,
		"dine_in":               f.DineIn,
		"takeout":               f.Takeout,
	}
}

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RatingSource is one provider's star rating and the number of reviews
// behind it.
type RatingSource struct {
	Provider string  `json:"provider"`
	Rating   float64 `json:"rating"`
	Count    int     `json:"count"`
}

// RestaurantCandidate is a restaurant under consideration, already
// enriched with provider categories and rating data.
type RestaurantCandidate struct {
	// PlaceID is the provider's stable identifier and the dedupe key.
	PlaceID string `json:"place_id"`

	Name     string   `json:"name"`
	Address  string   `json:"address,omitempty"`
	Location Location `json:"location"`
	Phone    string   `json:"phone,omitempty"`
	Website  string   `json:"website,omitempty"`

	// Cuisines holds provider categories such as "italian_restaurant".
	Cuisines []string `json:"cuisines"`

	// Accommodations lists dietary restrictions the restaurant is known to
	// serve, typically filled by the classifier.
	Accommodations []string `json:"accommodations,omitempty"`

	// Rating is the blended star rating in [0,5].
	Rating float64 `json:"rating"`

	// TotalRatings is the review count summed across sources.
	TotalRatings int `json:"total_ratings"`

	// Sources are the per-provider ratings Rating was blended from.
	Sources []RatingSource `json:"sources,omitempty"`

	PriceLevel PriceTier `json:"price_level"`
	Features   Features  `json:"features"`
}

// WithRatingSources returns a copy of c whose Rating and TotalRatings are
// blended from sources.
func (c RestaurantCandidate) WithRatingSources(sources ...RatingSource) RestaurantCandidate {
	c.Sources = slices.Clone(sources)
	c.Rating, c.TotalRatings = BlendRatings(sources...)
	return c
}

// Accommodates reports whether the restaurant is known to serve
// restriction r.
func (c RestaurantCandidate) Accommodates(r string) bool {
	return slices.Contains(c.Accommodations, r)
}

// UniqueCuisines returns the candidate's categories with duplicates and
// empty tags removed, preserving first occurrence.
func (c RestaurantCandidate) UniqueCuisines() []string {
	seen := make(map[string]struct{}, len(c.Cuisines))
	out := make([]string, 0, len(c.Cuisines))
	for _, t := range c.Cuisines {
		if t == UnmappedCuisine {
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

// richness scores how complete a record is. When two records describe the
// same place the richer one is kept.
func (c RestaurantCandidate) richness() int {
	n := len(c.UniqueCuisines()) + len(c.Accommodations) + len(c.Sources)
	for _, s := range []string{c.Name, c.Address, c.Phone, c.Website} {
		if s != "" {
			n++
		}
	}
	if c.PriceLevel != PriceUnspecified {
		n++
	}
	if c.TotalRatings > 0 {
		n++
	}
	return n
}

// BlendRatings combines per-source ratings into one score weighted by each
// source's share of the reviews. Sources without reviews carry no weight.
// With no reviews at all the blend is 0. The second result is the total
// review count.
func BlendRatings(sources ...RatingSource) (float64, int) {
	total := 0
	for _, s := range sources {
		if s.Count > 0 {
			total += s.Count
		}
	}
	if total == 0 {
		return 0, 0
	}

	var weighted, weights float64
	for _, s := range sources {
		if s.Count <= 0 {
			continue
		}
		w := float64(s.Count) / float64(total)
		weighted += s.Rating * w
		weights += w
	}
	if weights == 0 {
		return 0, total
	}
	return weighted / weights, total
}

// MergeCandidates removes duplicate places, keeping the richer of any two
// records sharing a PlaceID in the slot of the first occurrence. Records
// without a PlaceID cannot be matched and pass through unchanged.
func MergeCandidates(candidates []RestaurantCandidate) []RestaurantCandidate {
	out := make([]RestaurantCandidate, 0, len(candidates))
	index := make(map[string]int, len(candidates))
	for _, c := range candidates {
		if c.PlaceID == "" {
			out = append(out, c)
			continue
		}
		i, seen := index[c.PlaceID]
		if !seen {
			index[c.PlaceID] = len(out)
			out = append(out, c)
			continue
		}
		if c.richness() > out[i].richness() {
			out[i] = c
		}
	}
	return out
}
