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
	queryInsertEvent = `INSERT INTO event (id, title, host_email, event_date, areas, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	queryGetEvent = `SELECT id, title, host_email, event_date, areas, final_place, created_at
FROM event
WHERE id = $1`

	querySetSelection = `UPDATE event SET final_place_id = $2, final_place = $3 WHERE id = $1`

	queryClearSelection = `UPDATE event SET final_place_id = NULL, final_place = NULL WHERE id = $1`
)

// CreateEvent inserts event.
func (s *Store) CreateEvent(ctx context.Context, event domain.Event) error {
	areas, err := json.Marshal(event.Areas)
	if err != nil {
		return ports.NewStoreError(storeName, "create_event", fmt.Errorf("encode areas: %w", err))
	}
	var date sql.NullTime
	if event.Date != nil {
		date = sql.NullTime{Time: *event.Date, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, queryInsertEvent,
		event.ID, event.Title, event.HostEmail, date, areas, event.CreatedAt)
	if err != nil {
		return ports.NewStoreError(storeName, "create_event", err)
	}
	return nil
}

// GetEvent returns the event with its selection, or
// domain.ErrEventNotFound.
func (s *Store) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var (
		ev              domain.Event
		date            sql.NullTime
		areas, selected []byte
	)
	err := s.db.QueryRowContext(ctx, queryGetEvent, eventID).Scan(
		&ev.ID, &ev.Title, &ev.HostEmail, &date, &areas, &selected, &ev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Event{}, fmt.Errorf("event %s: %w", eventID, domain.ErrEventNotFound)
	}
	if err != nil {
		return domain.Event{}, ports.NewStoreError(storeName, "get_event", err)
	}

	if date.Valid {
		t := date.Time
		ev.Date = &t
	}
	if len(areas) > 0 {
		if err := json.Unmarshal(areas, &ev.Areas); err != nil {
			return domain.Event{}, ports.NewStoreError(storeName, "get_event", fmt.Errorf("decode areas: %w", err))
		}
	}
	if len(selected) > 0 {
		var sel domain.Selection
		if err := json.Unmarshal(selected, &sel); err != nil {
			return domain.Event{}, ports.NewStoreError(storeName, "get_event", fmt.Errorf("decode selection: %w", err))
		}
		ev.Selection = &sel
	}
	return ev, nil
}

// SaveSelection stores sel as the event's final restaurant.
func (s *Store) SaveSelection(ctx context.Context, eventID string, sel domain.Selection) error {
	payload, err := json.Marshal(sel)
	if err != nil {
		return ports.NewStoreError(storeName, "save_selection", fmt.Errorf("encode %s: %w", sel.PlaceID, err))
	}
	res, err := s.db.ExecContext(ctx, querySetSelection, eventID, sel.PlaceID, payload)
	if err != nil {
		return ports.NewStoreError(storeName, "save_selection", err)
	}
	return requireRow(res, eventID, "save_selection")
}

// ClearSelection removes the event's final restaurant.
func (s *Store) ClearSelection(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx, queryClearSelection, eventID)
	if err != nil {
		return ports.NewStoreError(storeName, "clear_selection", err)
	}
	return requireRow(res, eventID, "clear_selection")
}

// requireRow maps an update that touched no event to
// domain.ErrEventNotFound.
func requireRow(res sql.Result, eventID, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ports.NewStoreError(storeName, op, err)
	}
	if n == 0 {
		return fmt.Errorf("event %s: %w", eventID, domain.ErrEventNotFound)
	}
	return nil
}
