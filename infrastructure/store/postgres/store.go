// Package postgres stores events, guest responses and ranking results in
// PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/ahrav/go-tablefit/internal/ports"
)

//go:embed schema.sql
var schema string

const storeName = "postgres"

// Postgres error codes the store reacts to.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements ports.EventStore, ports.ResponseStore, ports.AreaStore
// and ports.ResultStore.
type Store struct {
	db *sql.DB
}

var (
	_ ports.EventStore    = (*Store)(nil)
	_ ports.ResponseStore = (*Store)(nil)
	_ ports.AreaStore     = (*Store)(nil)
	_ ports.ResultStore   = (*Store)(nil)
)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return New(db), nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return ports.NewStoreError(storeName, "migrate", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// jsonList stores a string slice in a JSONB column.
type jsonList []string

func (l jsonList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *jsonList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into a list", src)
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
