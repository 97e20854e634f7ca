package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

const (
	queryEventExists = `SELECT EXISTS (SELECT 1 FROM event WHERE id = $1)`

	queryListResponses = `SELECT id, event_id, name, email, dietary_restrictions, preferred_cuisines,
       anti_preferred_cuisines, acceptable_price_ranges, comments, created_at
FROM event_response
WHERE event_id = $1
ORDER BY created_at, id`

	queryInsertResponse = `INSERT INTO event_response (id, event_id, name, email, dietary_restrictions,
       preferred_cuisines, anti_preferred_cuisines, acceptable_price_ranges, comments, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	queryEventAreas = `SELECT areas FROM event WHERE id = $1`
)

// EventExists reports whether eventID is a known event.
func (s *Store) EventExists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, queryEventExists, eventID).Scan(&exists); err != nil {
		return false, ports.NewStoreError(storeName, "event_exists", err)
	}
	return exists, nil
}

// ListResponses returns the event's responses in submission order.
func (s *Store) ListResponses(ctx context.Context, eventID string) ([]domain.GuestResponse, error) {
	rows, err := s.db.QueryContext(ctx, queryListResponses, eventID)
	if err != nil {
		return nil, ports.NewStoreError(storeName, "list_responses", err)
	}
	defer rows.Close()

	var out []domain.GuestResponse
	for rows.Next() {
		var (
			r                                   domain.GuestResponse
			dietary, preferred, vetoed, pricing jsonList
		)
		if err := rows.Scan(
			&r.ID, &r.EventID, &r.Name, &r.Email,
			&dietary, &preferred, &vetoed, &pricing,
			&r.Comments, &r.SubmittedAt,
		); err != nil {
			return nil, ports.NewStoreError(storeName, "list_responses", err)
		}
		r.DietaryRestrictions = dietary
		r.PreferredCuisines = preferred
		r.AntiPreferredCuisines = vetoed
		r.AcceptablePriceRanges = pricing
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewStoreError(storeName, "list_responses", err)
	}
	return out, nil
}

// SaveResponse inserts resp. A response for an unknown event returns
// domain.ErrEventNotFound and a reused ID domain.ErrDuplicateResponse.
func (s *Store) SaveResponse(ctx context.Context, resp domain.GuestResponse) error {
	_, err := s.db.ExecContext(ctx, queryInsertResponse,
		resp.ID, resp.EventID, resp.Name, resp.Email,
		jsonList(resp.DietaryRestrictions),
		jsonList(resp.PreferredCuisines),
		jsonList(resp.AntiPreferredCuisines),
		jsonList(resp.AcceptablePriceRanges),
		resp.Comments, resp.SubmittedAt,
	)
	switch pqCode(err) {
	case "":
	case codeForeignKeyViolation:
		return fmt.Errorf("event %s: %w", resp.EventID, domain.ErrEventNotFound)
	case codeUniqueViolation:
		return fmt.Errorf("response %s: %w", resp.ID, domain.ErrDuplicateResponse)
	}
	if err != nil {
		return ports.NewStoreError(storeName, "save_response", err)
	}
	return nil
}

// ListAreas returns the event's search areas.
func (s *Store) ListAreas(ctx context.Context, eventID string) ([]domain.SearchArea, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, queryEventAreas, eventID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrEventNotFound)
	}
	if err != nil {
		return nil, ports.NewStoreError(storeName, "list_areas", err)
	}

	var areas []domain.SearchArea
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &areas); err != nil {
			return nil, ports.NewStoreError(storeName, "list_areas", fmt.Errorf("decode areas: %w", err))
		}
	}
	return areas, nil
}
