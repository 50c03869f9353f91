package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientStateRepository stores boolean client flags.
type ClientStateRepository struct {
	pool *pgxpool.Pool
}

// GetFlag returns the flag value and whether it was set.
func (r *ClientStateRepository) GetFlag(ctx context.Context, key string) (bool, bool, error) {
	var value bool
	err := r.pool.QueryRow(ctx, `SELECT value FROM client_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("querying client state: %w", err)
	}
	return value, true, nil
}

// SetFlag creates or updates a flag.
func (r *ClientStateRepository) SetFlag(ctx context.Context, key string, value bool) error {
	query := `
		INSERT INTO client_state (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("upserting client state: %w", err)
	}
	return nil
}
