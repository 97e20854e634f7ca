package domain

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// UnmappedCuisine is the category assigned to guest labels the vocabulary
// does not know. No candidate ever carries it, so it never matches.
const UnmappedCuisine = ""

// Vocabulary joins the guest-facing cuisine labels to provider category
// tags and maps price tokens to tiers. It is immutable after construction
// and safe for concurrent use; callers inject it rather than reading
// package state.
type Vocabulary struct {
	categories   map[string]string // label -> category
	labels       map[string]string // category -> label
	folded       map[string]string // folded label or category -> category
	prices       map[string]PriceTier
	restrictions map[string]string // folded tag -> canonical tag
}

// NewVocabulary builds a Vocabulary from a label to category table, a
// price token table, and the list of recognized dietary restrictions.
// The cuisine table must be one-to-one so it can be read in both
// directions.
func NewVocabulary(
	cuisines map[string]string,
	prices map[string]PriceTier,
	restrictions []string,
) (*Vocabulary, error) {
	verr := NewValidationError("vocabulary")
	v := &Vocabulary{
		categories:   make(map[string]string, len(cuisines)),
		labels:       make(map[string]string, len(cuisines)),
		folded:       make(map[string]string, len(cuisines)*2),
		prices:       make(map[string]PriceTier, len(prices)),
		restrictions: make(map[string]string, len(restrictions)),
	}

	for label, category := range cuisines {
		label, category = strings.TrimSpace(label), strings.TrimSpace(category)
		if label == "" || category == "" {
			verr.AddError(fmt.Sprintf("cuisine mapping %q -> %q has an empty side", label, category))
			continue
		}
		if prev, dup := v.labels[category]; dup {
			verr.AddError(fmt.Sprintf("category %q is mapped from both %q and %q", category, prev, label))
			continue
		}
		v.categories[label] = category
		v.labels[category] = label
		v.folded[fold(label)] = category
		v.folded[fold(category)] = category
	}

	for token, tier := range prices {
		if !tier.Valid() {
			verr.AddError(fmt.Sprintf("price token %q maps to invalid tier %d", token, int(tier)))
			continue
		}
		v.prices[strings.TrimSpace(token)] = tier
	}

	for _, r := range restrictions {
		if r = strings.TrimSpace(r); r != "" {
			v.restrictions[fold(r)] = r
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return v, nil
}

// DefaultVocabulary returns a fresh copy of the stock English vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(defaultCuisines(), defaultPrices(), defaultRestrictions())
	if err != nil {
		panic(fmt.Sprintf("default vocabulary is invalid: %v", err))
	}
	return v
}

// Category maps a guest label to its provider category. Exact matches win,
// then case-insensitive matches on either labels or categories. Unknown
// labels return UnmappedCuisine.
func (v *Vocabulary) Category(label string) string {
	label = strings.TrimSpace(label)
	if c, ok := v.categories[label]; ok {
		return c
	}
	if _, ok := v.labels[label]; ok {
		return label
	}
	if c, ok := v.folded[fold(label)]; ok {
		return c
	}
	return UnmappedCuisine
}

// Label maps a provider category back to its guest-facing label.
func (v *Vocabulary) Label(category string) (string, bool) {
	l, ok := v.labels[category]
	return l, ok
}

// IsCategory reports whether tag is a known provider category.
func (v *Vocabulary) IsCategory(tag string) bool {
	_, ok := v.labels[tag]
	return ok
}

// Labels returns every guest-facing label in sorted order.
func (v *Vocabulary) Labels() []string {
	out := make([]string, 0, len(v.categories))
	for l := range v.categories {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Categories returns every provider category in sorted order.
func (v *Vocabulary) Categories() []string {
	out := make([]string, 0, len(v.labels))
	for c := range v.labels {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// PriceTier maps a price token to a tier. Unknown tokens are
// PriceUnspecified.
func (v *Vocabulary) PriceTier(token string) PriceTier {
	return v.prices[strings.TrimSpace(token)]
}

// IsPriceToken reports whether token appears in the price table.
func (v *Vocabulary) IsPriceToken(token string) bool {
	_, ok := v.prices[strings.TrimSpace(token)]
	return ok
}

// PriceToken returns the token for tier, preferring the shortest token
// when several map to the same tier.
func (v *Vocabulary) PriceToken(tier PriceTier) (string, bool) {
	var best string
	found := false
	for tok, t := range v.prices {
		if t != tier {
			continue
		}
		if !found || len(tok) < len(best) || (len(tok) == len(best) && tok < best) {
			best, found = tok, true
		}
	}
	return best, found
}

// Restriction returns the canonical spelling of a dietary restriction.
// Unknown restrictions are returned trimmed with ok set to false.
func (v *Vocabulary) Restriction(tag string) (string, bool) {
	tag = strings.TrimSpace(tag)
	if c, ok := v.restrictions[fold(tag)]; ok {
		return c, true
	}
	return tag, false
}

// Restrictions returns the canonical dietary restrictions in sorted order.
func (v *Vocabulary) Restrictions() []string {
	out := make([]string, 0, len(v.restrictions))
	for _, r := range v.restrictions {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// fold builds a fresh caser per call; cases.Caser is not safe to share
// across goroutines.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func defaultCuisines() map[string]string {
	return map[string]string{
		"Afghani":        "afghani_restaurant",
		"African":        "african_restaurant",
		"American":       "american_restaurant",
		"Asian":          "asian_restaurant",
		"Barbecue":       "barbecue_restaurant",
		"Brazilian":      "brazilian_restaurant",
		"Breakfast":      "breakfast_restaurant",
		"Brunch":         "brunch_restaurant",
		"Buffet":         "buffet_restaurant",
		"Chinese":        "chinese_restaurant",
		"Dessert":        "dessert_restaurant",
		"Fast Food":      "fast_food_restaurant",
		"Fine Dining":    "fine_dining_restaurant",
		"French":         "french_restaurant",
		"Greek":          "greek_restaurant",
		"Hamburger":      "hamburger_restaurant",
		"Indian":         "indian_restaurant",
		"Indonesian":     "indonesian_restaurant",
		"Italian":        "italian_restaurant",
		"Japanese":       "japanese_restaurant",
		"Korean":         "korean_restaurant",
		"Lebanese":       "lebanese_restaurant",
		"Mediterranean":  "mediterranean_restaurant",
		"Mexican":        "mexican_restaurant",
		"Middle Eastern": "middle_eastern_restaurant",
		"Pizza":          "pizza_restaurant",
		"Ramen":          "ramen_restaurant",
		"Seafood":        "seafood_restaurant",
		"Spanish":        "spanish_restaurant",
		"Sushi":          "sushi_restaurant",
		"Thai":           "thai_restaurant",
		"Turkish":        "turkish_restaurant",
		"Vegan":          "vegan_restaurant",
		"Vegetarian":     "vegetarian_restaurant",
		"Vietnamese":     "vietnamese_restaurant",
		"Cafe":           "cafe",
		"Cafeteria":      "cafeteria",
		"Coffee Shop":    "coffee_shop",
		"Tea House":      "tea_house",
	}
}

func defaultPrices() map[string]PriceTier {
	return map[string]PriceTier{
		"?":    PriceUnspecified,
		"$":    PriceInexpensive,
		"$$":   PriceModerate,
		"$$$":  PriceExpensive,
		"$$$$": PriceVeryExpensive,
	}
}

func defaultRestrictions() []string {
	return []string{"Vegetarian", "Vegan", "Gluten-Free", "Halal", "Kosher"}
}
