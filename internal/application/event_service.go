package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// EventRequest is the form a host posts to open an event.
type EventRequest struct {
	Title     string        `json:"title" validate:"required,max=200"`
	HostEmail string        `json:"host_email" validate:"omitempty,email,max=320"`
	Date      *time.Time    `json:"date"`
	Areas     []AreaRequest `json:"areas" validate:"required,min=1,max=10,dive"`
}

// AreaRequest is one search circle in an EventRequest. The radius cap is
// the Places API limit.
type AreaRequest struct {
	Name         string  `json:"name" validate:"max=100"`
	Lat          float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng          float64 `json:"lng" validate:"gte=-180,lte=180"`
	RadiusMeters float64 `json:"radius_meters" validate:"gt=0,lte=50000"`
}

// EventService opens events and records the host's final restaurant.
type EventService struct {
	events   ports.EventStore
	results  ports.ResultStore
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewEventService creates an EventService. A nil logger is replaced with a
// no-op logger.
func NewEventService(events ports.EventStore, results ports.ResultStore, logger *zap.Logger) (*EventService, error) {
	if events == nil {
		return nil, fmt.Errorf("%w: event store is required", domain.ErrInvalidConfiguration)
	}
	if results == nil {
		return nil, fmt.Errorf("%w: result store is required", domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		events:   events,
		results:  results,
		validate: newRequestValidator(),
		logger:   logger.Named("events"),
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// CreateEvent validates req and stores it as a new event with a fresh ID.
// Invalid requests return a *domain.ValidationError.
func (s *EventService) CreateEvent(ctx context.Context, req EventRequest) (domain.Event, error) {
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return domain.Event{}, fmt.Errorf("validate event: %w", err)
		}
		verr := domain.NewValidationError("event")
		for _, fe := range fieldErrs {
			verr.AddError(fieldMessage(fe))
		}
		return domain.Event{}, verr
	}

	ev := domain.Event{
		ID:        s.newID(),
		Title:     strings.TrimSpace(req.Title),
		HostEmail: strings.TrimSpace(req.HostEmail),
		Areas:     make([]domain.SearchArea, 0, len(req.Areas)),
		CreatedAt: s.now().UTC(),
	}
	if req.Date != nil {
		d := req.Date.UTC()
		ev.Date = &d
	}
	for i, a := range req.Areas {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = fmt.Sprintf("area %d", i+1)
		}
		ev.Areas = append(ev.Areas, domain.SearchArea{
			Name:         name,
			Lat:          a.Lat,
			Lng:          a.Lng,
			RadiusMeters: a.RadiusMeters,
		})
	}

	if err := s.events.CreateEvent(ctx, ev); err != nil {
		return domain.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info("event created", zap.String("event_id", ev.ID), zap.Int("areas", len(ev.Areas)))
	return ev, nil
}

// GetEvent returns the event with its selection, if any.
func (s *EventService) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	return s.events.GetEvent(ctx, eventID)
}

// SelectRestaurant records placeID as the event's final restaurant. The
// place must appear in the event's latest ranking; otherwise the result is
// domain.ErrRankingNotFound or domain.ErrPlaceNotRanked.
func (s *EventService) SelectRestaurant(ctx context.Context, eventID, placeID string) (domain.Selection, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		verr := domain.NewValidationError("selection")
		verr.AddError("place_id is required")
		return domain.Selection{}, verr
	}

	run, err := s.results.LatestRanking(ctx, eventID)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("load ranking for %s: %w", eventID, err)
	}

	for _, r := range run.Results {
		if r.Restaurant.PlaceID != placeID {
			continue
		}
		sel := domain.Selection{
			PlaceID:    placeID,
			RunID:      run.RunID,
			Result:     r,
			SelectedAt: s.now().UTC(),
		}
		if err := s.events.SaveSelection(ctx, eventID, sel); err != nil {
			return domain.Selection{}, fmt.Errorf("save selection for %s: %w", eventID, err)
		}
		s.logger.Info("restaurant selected",
			zap.String("event_id", eventID),
			zap.String("place_id", placeID),
			zap.String("run_id", run.RunID))
		return sel, nil
	}
	return domain.Selection{}, fmt.Errorf("place %s: %w", placeID, domain.ErrPlaceNotRanked)
}

// ClearSelection removes the event's final restaurant.
func (s *EventService) ClearSelection(ctx context.Context, eventID string) error {
	if err := s.events.ClearSelection(ctx, eventID); err != nil {
		return fmt.Errorf("clear selection for %s: %w", eventID, err)
	}
	s.logger.Info("selection cleared", zap.String("event_id", eventID))
	return nil
}
