// Package db provides PostgreSQL access for the detection archive and the
// persisted client state.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS detections (
	id          UUID PRIMARY KEY,
	emotion     TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	expressions JSONB NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS detections_detected_at_idx ON detections (detected_at DESC);

CREATE TABLE IF NOT EXISTS client_state (
	key        TEXT PRIMARY KEY,
	value      BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Detections returns a DetectionRepository.
func (db *DB) Detections() *DetectionRepository {
	return &DetectionRepository{pool: db.pool}
}

// ClientState returns a ClientStateRepository.
func (db *DB) ClientState() *ClientStateRepository {
	return &ClientStateRepository{pool: db.pool}
}
