package domain

import "time"

// ScoreBreakdown records each additive term behind a score so a host can
// see why a restaurant placed where it did.
type ScoreBreakdown struct {
	Cuisine    float64 `json:"cuisine"`
	Rating     float64 `json:"rating"`
	Popularity float64 `json:"popularity"`
	Price      float64 `json:"price"`
	Dietary    float64 `json:"dietary"`
	Rules      float64 `json:"rules"`
}

// Total sums every term.
func (b ScoreBreakdown) Total() float64 {
	return b.Cuisine + b.Rating + b.Popularity + b.Price + b.Dietary + b.Rules
}

// RankingResult pairs a candidate with its raw score.
type RankingResult struct {
	Restaurant RestaurantCandidate `json:"restaurant"`

	// Score is unbounded and may be negative.
	Score float64 `json:"score"`

	// DisplayScore is an optional presentation rescaling of Score. It
	// never affects ordering.
	DisplayScore float64 `json:"display_score"`

	Breakdown ScoreBreakdown `json:"breakdown"`
}

// RankingMeta summarizes the inputs to a ranking run. TotalRestaurants
// counts distinct candidates after duplicates are merged; RankedRestaurants
// counts the results returned.
type RankingMeta struct {
	TotalResponses    int `json:"total_responses"`
	TotalRestaurants  int `json:"total_restaurants"`
	RankedRestaurants int `json:"ranked_restaurants"`
}

// RankingRun is the outcome of ranking one event.
type RankingRun struct {
	RunID       string                `json:"run_id"`
	EventID     string                `json:"event_id"`
	PlanID      string                `json:"plan_id"`
	Results     []RankingResult       `json:"results"`
	Meta        RankingMeta           `json:"meta"`
	Preferences AggregatedPreferences `json:"-"`
	CreatedAt   time.Time             `json:"created_at"`
}

// SearchArea is a circle the candidate source searches within.
type SearchArea struct {
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radius_meters"`
}
