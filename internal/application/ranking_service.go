package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// RankingServiceConfig wires a RankingService.
type RankingServiceConfig struct {
	Responses ports.ResponseStore
	Areas     ports.AreaStore
	Source    ports.CandidateSource
	Results   ports.ResultStore
	Plan      *Plan
	// Metrics is optional.
	Metrics ports.MetricsCollector
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// RankingService ranks an event's candidate restaurants on demand. Each
// call rereads every response, so a late submission is reflected the next
// time the host asks.
type RankingService struct {
	responses ports.ResponseStore
	areas     ports.AreaStore
	source    ports.CandidateSource
	results   ports.ResultStore
	plan      *Plan
	metrics   ports.MetricsCollector
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// NewRankingService validates cfg and builds the service.
func NewRankingService(cfg RankingServiceConfig) (*RankingService, error) {
	switch {
	case cfg.Responses == nil:
		return nil, fmt.Errorf("%w: response store is required", domain.ErrInvalidConfiguration)
	case cfg.Areas == nil:
		return nil, fmt.Errorf("%w: area store is required", domain.ErrInvalidConfiguration)
	case cfg.Source == nil:
		return nil, fmt.Errorf("%w: candidate source is required", domain.ErrInvalidConfiguration)
	case cfg.Results == nil:
		return nil, fmt.Errorf("%w: result store is required", domain.ErrInvalidConfiguration)
	case cfg.Plan == nil:
		return nil, fmt.Errorf("%w: ranking plan is required", domain.ErrInvalidConfiguration)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Metrics != nil {
		cfg.Plan.SetMetrics(cfg.Metrics)
	}
	return &RankingService{
		responses: cfg.Responses,
		areas:     cfg.Areas,
		source:    cfg.Source,
		results:   cfg.Results,
		plan:      cfg.Plan,
		metrics:   cfg.Metrics,
		logger:    logger.Named("ranking"),
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// RankEvent ranks every candidate for eventID against the current
// responses and stores the run as the event's latest ranking.
//
// It returns domain.ErrEventNotFound for an unknown event and
// domain.ErrNoResponses before anyone has responded. An event whose areas
// yield no candidates gets an empty ranking, not an error.
func (s *RankingService) RankEvent(ctx context.Context, eventID string) (run domain.RankingRun, err error) {
	start := s.now()
	runID := s.newID()
	log := s.logger.With(zap.String("event_id", eventID), zap.String("run_id", runID))

	defer func() {
		s.recordRun(start, err)
		if err != nil {
			log.Warn("ranking failed", zap.Error(err))
		}
	}()

	exists, err := s.responses.EventExists(ctx, eventID)
	if err != nil {
		return domain.RankingRun{}, fmt.Errorf("check event %s: %w", eventID, err)
	}
	if !exists {
		return domain.RankingRun{}, fmt.Errorf("event %s: %w", eventID, domain.ErrEventNotFound)
	}

	responses, err := s.responses.ListResponses(ctx, eventID)
	if err != nil {
		return domain.RankingRun{}, fmt.Errorf("list responses for %s: %w", eventID, err)
	}
	if len(responses) == 0 {
		return domain.RankingRun{}, fmt.Errorf("event %s: %w", eventID, domain.ErrNoResponses)
	}

	candidates, err := s.findCandidates(ctx, eventID)
	if err != nil {
		return domain.RankingRun{}, err
	}

	state := domain.NewState().WithExecutionContext(domain.ExecutionContext{
		PlanID:  s.plan.Name,
		EventID: eventID,
		RunID:   runID,
	})
	state = domain.With(state, domain.KeyGuestResponses, responses)
	state = domain.With(state, domain.KeyCandidates, candidates)

	out, err := s.plan.Execute(ctx, state)
	if err != nil {
		return domain.RankingRun{}, fmt.Errorf("run plan %s for %s: %w", s.plan.Name, eventID, err)
	}

	results, err := domain.Require(out, domain.KeyResults)
	if err != nil {
		return domain.RankingRun{}, fmt.Errorf("plan %s produced no results: %w", s.plan.Name, err)
	}
	if results == nil {
		results = []domain.RankingResult{}
	}
	prefs, _ := domain.Get(out, domain.KeyPreferences)
	merged, _ := domain.Get(out, domain.KeyCandidates)

	run = domain.RankingRun{
		RunID:       runID,
		EventID:     eventID,
		PlanID:      s.plan.Name,
		Results:     results,
		Preferences: prefs,
		Meta: domain.RankingMeta{
			TotalResponses:    len(responses),
			TotalRestaurants:  len(merged),
			RankedRestaurants: len(results),
		},
		CreatedAt: s.now().UTC(),
	}

	if err := s.results.SaveRanking(ctx, run); err != nil {
		return domain.RankingRun{}, fmt.Errorf("save ranking for %s: %w", eventID, err)
	}

	log.Info("ranked event",
		zap.String("plan", s.plan.Name),
		zap.Int("responses", run.Meta.TotalResponses),
		zap.Int("restaurants", run.Meta.TotalRestaurants),
		zap.Int("ranked", run.Meta.RankedRestaurants),
		zap.Strings("top_cuisines", prefs.TopCuisines()),
		zap.Stringer("price_ceiling", prefs.MaxEffectivePrice),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return run, nil
}

func (s *RankingService) findCandidates(ctx context.Context, eventID string) ([]domain.RestaurantCandidate, error) {
	areas, err := s.areas.ListAreas(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list areas for %s: %w", eventID, err)
	}
	if len(areas) == 0 {
		return []domain.RestaurantCandidate{}, nil
	}
	candidates, err := s.source.FindCandidates(ctx, areas)
	if err != nil {
		return nil, fmt.Errorf("find candidates for %s: %w", eventID, err)
	}
	if candidates == nil {
		candidates = []domain.RestaurantCandidate{}
	}
	return candidates, nil
}

// LatestRanking returns the most recent stored ranking for eventID.
func (s *RankingService) LatestRanking(ctx context.Context, eventID string) (domain.RankingRun, error) {
	run, err := s.results.LatestRanking(ctx, eventID)
	if err != nil {
		return domain.RankingRun{}, fmt.Errorf("latest ranking for %s: %w", eventID, err)
	}
	return run, nil
}

func (s *RankingService) recordRun(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	switch {
	case errors.Is(err, domain.ErrNoResponses):
		status = "no_responses"
	case errors.Is(err, domain.ErrEventNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	labels := map[string]string{"plan": s.plan.Name, "status": status}
	s.metrics.RecordCounter("ranking_runs_total", 1, labels)
	s.metrics.RecordLatency("ranking_duration", s.now().Sub(start), labels)
}
