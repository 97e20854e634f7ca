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
	queryDeleteRuns = `DELETE FROM ranking_run WHERE event_id = $1`

	queryInsertRun = `INSERT INTO ranking_run (run_id, event_id, plan_id, total_responses,
       total_restaurants, ranked_restaurants, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	queryInsertPlace = `INSERT INTO ranked_place (event_id, run_id, position, place_id, name, score,
       display_score, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	queryLatestRun = `SELECT run_id, plan_id, total_responses, total_restaurants, ranked_restaurants, created_at
FROM ranking_run
WHERE event_id = $1
ORDER BY created_at DESC
LIMIT 1`

	queryRunPlaces = `SELECT payload FROM ranked_place WHERE run_id = $1 ORDER BY position`
)

// SaveRanking replaces the event's ranking with run in one transaction.
// Places cascade with their run.
func (s *Store) SaveRanking(ctx context.Context, run domain.RankingRun) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.NewStoreError(storeName, "save_ranking", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, queryDeleteRuns, run.EventID); err != nil {
		return ports.NewStoreError(storeName, "save_ranking", err)
	}
	if _, err = tx.ExecContext(ctx, queryInsertRun,
		run.RunID, run.EventID, run.PlanID,
		run.Meta.TotalResponses, run.Meta.TotalRestaurants, run.Meta.RankedRestaurants,
		run.CreatedAt,
	); err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return fmt.Errorf("event %s: %w", run.EventID, domain.ErrEventNotFound)
		}
		return ports.NewStoreError(storeName, "save_ranking", err)
	}

	for i, r := range run.Results {
		var payload []byte
		payload, err = json.Marshal(r)
		if err != nil {
			return ports.NewStoreError(storeName, "save_ranking", fmt.Errorf("encode %s: %w", r.Restaurant.PlaceID, err))
		}
		if _, err = tx.ExecContext(ctx, queryInsertPlace,
			run.EventID, run.RunID, i+1, r.Restaurant.PlaceID, r.Restaurant.Name,
			r.Score, r.DisplayScore, payload, run.CreatedAt,
		); err != nil {
			return ports.NewStoreError(storeName, "save_ranking", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return ports.NewStoreError(storeName, "save_ranking", err)
	}
	return nil
}

// LatestRanking returns the most recent run for eventID or
// domain.ErrRankingNotFound.
func (s *Store) LatestRanking(ctx context.Context, eventID string) (domain.RankingRun, error) {
	run := domain.RankingRun{EventID: eventID}
	err := s.db.QueryRowContext(ctx, queryLatestRun, eventID).Scan(
		&run.RunID, &run.PlanID,
		&run.Meta.TotalResponses, &run.Meta.TotalRestaurants, &run.Meta.RankedRestaurants,
		&run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RankingRun{}, fmt.Errorf("event %s: %w", eventID, domain.ErrRankingNotFound)
	}
	if err != nil {
		return domain.RankingRun{}, ports.NewStoreError(storeName, "latest_ranking", err)
	}

	rows, err := s.db.QueryContext(ctx, queryRunPlaces, run.RunID)
	if err != nil {
		return domain.RankingRun{}, ports.NewStoreError(storeName, "latest_ranking", err)
	}
	defer rows.Close()

	run.Results = []domain.RankingResult{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return domain.RankingRun{}, ports.NewStoreError(storeName, "latest_ranking", err)
		}
		var r domain.RankingResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return domain.RankingRun{}, ports.NewStoreError(storeName, "latest_ranking", fmt.Errorf("decode place: %w", err))
		}
		run.Results = append(run.Results, r)
	}
	if err := rows.Err(); err != nil {
		return domain.RankingRun{}, ports.NewStoreError(storeName, "latest_ranking", err)
	}
	return run, nil
}
