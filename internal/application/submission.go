package application

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-tablefit/internal/domain"
)

// Submission limits.
const (
	MaxPreferredCuisines = 5
	// maxSuggestionDistance is the largest edit distance offered as a
	// "did you mean" hint.
	maxSuggestionDistance = 2
)

// GuestSubmission is the raw form a guest posts for an event.
type GuestSubmission struct {
	Name                  string   `json:"name" validate:"required,max=200"`
	Email                 string   `json:"email" validate:"required,email,max=320"`
	DietaryRestrictions   []string `json:"dietary_restrictions" validate:"max=20"`
	PreferredCuisines     []string `json:"preferred_cuisines"`
	AntiPreferredCuisines []string `json:"anti_preferred_cuisines" validate:"max=50"`
	AcceptablePriceRanges []string `json:"acceptable_price_ranges"`
	Comments              string   `json:"comments" validate:"max=2000"`
}

// SubmissionValidator checks guest submissions against the vocabulary
// before they are stored, so the ranking core only sees well-formed
// responses.
type SubmissionValidator struct {
	vocab    *domain.Vocabulary
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// newRequestValidator reports fields by their JSON names.
func newRequestValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return validate
}

// NewSubmissionValidator creates a validator for vocab.
func NewSubmissionValidator(vocab *domain.Vocabulary) *SubmissionValidator {
	return &SubmissionValidator{
		vocab:    vocab,
		validate: newRequestValidator(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Validate returns a *domain.ValidationError listing every problem with
// sub, or nil.
func (v *SubmissionValidator) Validate(sub GuestSubmission) error {
	verr := domain.NewValidationError("submission")

	if err := v.validate.Struct(sub); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate submission: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.AddError(fieldMessage(fe))
		}
	}

	preferred := make(map[string]struct{}, len(sub.PreferredCuisines))
	switch n := len(sub.PreferredCuisines); {
	case n == 0:
		verr.AddError("choose at least one preferred cuisine")
	case n > MaxPreferredCuisines:
		verr.AddError(fmt.Sprintf("choose at most %d preferred cuisines, got %d", MaxPreferredCuisines, n))
	}
	for _, label := range sub.PreferredCuisines {
		cat, ok := v.cuisine(label, verr)
		if !ok {
			continue
		}
		if _, dup := preferred[cat]; dup {
			verr.AddError(fmt.Sprintf("cuisine %q is listed more than once", label))
			continue
		}
		preferred[cat] = struct{}{}
	}

	for _, label := range sub.AntiPreferredCuisines {
		cat, ok := v.cuisine(label, verr)
		if !ok {
			continue
		}
		if _, clash := preferred[cat]; clash {
			verr.AddError(fmt.Sprintf("cuisine %q cannot be both preferred and avoided", label))
		}
	}

	for _, tag := range sub.DietaryRestrictions {
		if _, ok := v.vocab.Restriction(tag); !ok {
			verr.AddError(unknownMessage("dietary restriction", tag, suggest(tag, v.vocab.Restrictions())))
		}
	}

	if len(sub.AcceptablePriceRanges) == 0 {
		verr.AddError("choose at least one acceptable price range")
	}
	for _, tok := range sub.AcceptablePriceRanges {
		if !v.vocab.IsPriceToken(tok) {
			verr.AddError(fmt.Sprintf("unknown price range %q", tok))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// cuisine maps label to its category, recording an error with a hint if
// the label is unknown.
func (v *SubmissionValidator) cuisine(label string, verr *domain.ValidationError) (string, bool) {
	cat := v.vocab.Category(label)
	if cat == domain.UnmappedCuisine {
		verr.AddError(unknownMessage("cuisine", label, suggest(label, v.vocab.Labels())))
		return "", false
	}
	return cat, true
}

// Build validates sub and converts it into a response for eventID with
// labels and restrictions in canonical spelling.
func (v *SubmissionValidator) Build(eventID string, sub GuestSubmission) (domain.GuestResponse, error) {
	if err := v.Validate(sub); err != nil {
		return domain.GuestResponse{}, err
	}

	resp := domain.GuestResponse{
		ID:                    v.newID(),
		EventID:               eventID,
		Name:                  strings.TrimSpace(sub.Name),
		Email:                 strings.TrimSpace(sub.Email),
		DietaryRestrictions:   make([]string, 0, len(sub.DietaryRestrictions)),
		PreferredCuisines:     v.canonicalLabels(sub.PreferredCuisines),
		AntiPreferredCuisines: v.canonicalLabels(sub.AntiPreferredCuisines),
		AcceptablePriceRanges: make([]string, 0, len(sub.AcceptablePriceRanges)),
		Comments:              strings.TrimSpace(sub.Comments),
		SubmittedAt:           v.now().UTC(),
	}
	for _, tag := range sub.DietaryRestrictions {
		canonical, _ := v.vocab.Restriction(tag)
		resp.DietaryRestrictions = appendMissing(resp.DietaryRestrictions, canonical)
	}
	for _, tok := range sub.AcceptablePriceRanges {
		resp.AcceptablePriceRanges = appendMissing(resp.AcceptablePriceRanges, strings.TrimSpace(tok))
	}
	return resp, nil
}

func (v *SubmissionValidator) canonicalLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		cat := v.vocab.Category(l)
		if label, ok := v.vocab.Label(cat); ok {
			out = appendMissing(out, label)
		}
	}
	return out
}

func appendMissing(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// suggest returns the closest option to input within
// maxSuggestionDistance edits, or "" if none is close. Both sides are case
// folded the way the vocabulary matches labels.
func suggest(input string, options []string) string {
	caser := cases.Fold()
	needle := caser.String(strings.TrimSpace(input))
	if needle == "" {
		return ""
	}
	best, bestDist := "", maxSuggestionDistance+1
	for _, opt := range options {
		if d := levenshtein.ComputeDistance(needle, caser.String(opt)); d < bestDist {
			best, bestDist = opt, d
		}
	}
	return best
}

func unknownMessage(kind, value, hint string) string {
	if hint == "" {
		return fmt.Sprintf("unknown %s %q", kind, value)
	}
	return fmt.Sprintf("unknown %s %q, did you mean %q?", kind, value, hint)
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return fmt.Sprintf("%s %q is not a valid address", field, fe.Value())
	case "max":
		return fmt.Sprintf("%s exceeds the maximum of %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// fieldPath drops the struct name from the error's namespace, leaving
// "areas[0].lat" for nested fields.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
