package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// ResponseService accepts guest submissions for an event.
type ResponseService struct {
	responses ports.ResponseStore
	validator *SubmissionValidator
	logger    *zap.Logger
}

// NewResponseService creates a ResponseService. A nil logger is replaced
// with a no-op logger.
func NewResponseService(
	responses ports.ResponseStore,
	validator *SubmissionValidator,
	logger *zap.Logger,
) (*ResponseService, error) {
	if responses == nil {
		return nil, fmt.Errorf("%w: response store is required", domain.ErrInvalidConfiguration)
	}
	if validator == nil {
		return nil, fmt.Errorf("%w: submission validator is required", domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseService{responses: responses, validator: validator, logger: logger.Named("responses")}, nil
}

// Submit validates sub and stores it as a response to eventID. Invalid
// submissions return a *domain.ValidationError and unknown events
// domain.ErrEventNotFound; nothing is stored in either case.
func (s *ResponseService) Submit(ctx context.Context, eventID string, sub GuestSubmission) (domain.GuestResponse, error) {
	resp, err := s.validator.Build(eventID, sub)
	if err != nil {
		return domain.GuestResponse{}, err
	}

	exists, err := s.responses.EventExists(ctx, eventID)
	if err != nil {
		return domain.GuestResponse{}, fmt.Errorf("check event %s: %w", eventID, err)
	}
	if !exists {
		return domain.GuestResponse{}, fmt.Errorf("event %s: %w", eventID, domain.ErrEventNotFound)
	}

	if err := s.responses.SaveResponse(ctx, resp); err != nil {
		return domain.GuestResponse{}, fmt.Errorf("save response for %s: %w", eventID, err)
	}

	s.logger.Info("response recorded",
		zap.String("event_id", eventID),
		zap.String("response_id", resp.ID),
		zap.Int("preferred", len(resp.PreferredCuisines)),
		zap.Int("vetoed", len(resp.AntiPreferredCuisines)),
	)
	return resp, nil
}
