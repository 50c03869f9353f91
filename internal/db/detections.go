package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/go-emotion-music/internal/emotion"
)

// DetectionRepository handles detection archive operations.
type DetectionRepository struct {
	pool *pgxpool.Pool
}

// Record archives a successful result.
func (r *DetectionRepository) Record(ctx context.Context, result emotion.Result) error {
	d := NewDetection(result)
	return r.Insert(ctx, &d)
}

// Insert inserts a detection, assigning an ID if it has none.
func (r *DetectionRepository) Insert(ctx context.Context, d *Detection) error {
	query := `
		INSERT INTO detections (id, emotion, confidence, expressions, detected_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, query,
		d.ID,
		d.Emotion,
		d.Confidence,
		d.Expressions,
		d.DetectedAt,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting detection: %w", err)
	}
	return nil
}

// Get retrieves a detection by ID.
func (r *DetectionRepository) Get(ctx context.Context, id uuid.UUID) (*Detection, error) {
	query := `
		SELECT id, emotion, confidence, expressions, detected_at, created_at
		FROM detections
		WHERE id = $1
	`
	var d Detection
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Emotion,
		&d.Confidence,
		&d.Expressions,
		&d.DetectedAt,
		&d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying detection: %w", err)
	}
	return &d, nil
}

// Recent returns up to limit detections, newest first.
func (r *DetectionRepository) Recent(ctx context.Context, limit int) ([]Detection, error) {
	query := `
		SELECT id, emotion, confidence, expressions, detected_at, created_at
		FROM detections
		ORDER BY detected_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()

	var detections []Detection
	for rows.Next() {
		var d Detection
		if err := rows.Scan(
			&d.ID,
			&d.Emotion,
			&d.Confidence,
			&d.Expressions,
			&d.DetectedAt,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning detection: %w", err)
		}
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating detections: %w", err)
	}
	return detections, nil
}

// RecentResults is Recent converted to emotion results, oldest first.
// Rows that no longer parse are skipped.
func (r *DetectionRepository) RecentResults(ctx context.Context, limit int) ([]emotion.Result, error) {
	detections, err := r.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	results := make([]emotion.Result, 0, len(detections))
	for i := len(detections) - 1; i >= 0; i-- {
		res, err := detections[i].Result()
		if err != nil {
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// DeleteAll removes every archived detection.
func (r *DetectionRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM detections`); err != nil {
		return fmt.Errorf("deleting detections: %w", err)
	}
	return nil
}
