package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campaignify/xenocrm/internal/models"
)

type SegmentRepo struct {
	db *sql.DB
}

func NewSegmentRepo(db *sql.DB) *SegmentRepo {
	return &SegmentRepo{db: db}
}

func (r *SegmentRepo) Create(ctx context.Context, s *models.Segment) error {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO segments (id, name, description, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.Name, s.Description, []byte(s.Rules), s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *SegmentRepo) GetByID(ctx context.Context, id string) (*models.Segment, error) {
	var s models.Segment
	var rules []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, rules, created_at, updated_at
		FROM segments
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Description, &rules, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Rules = rules
	return &s, nil
}

func (r *SegmentRepo) List(ctx context.Context) ([]models.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, rules, created_at, updated_at
		FROM segments
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []models.Segment
	for rows.Next() {
		var s models.Segment
		var rules []byte
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &rules, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Rules = rules
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

func (r *SegmentRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpsertMember adds a row to the materialized membership cache. Idempotent:
// an existing pair is left untouched.
func (r *SegmentRepo) UpsertMember(ctx context.Context, customerID, segmentID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customer_segments (customer_id, segment_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, segment_id) DO NOTHING
	`, customerID, segmentID, time.Now().UTC())
	return err
}

func (r *SegmentRepo) RemoveMember(ctx context.Context, customerID, segmentID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM customer_segments WHERE customer_id = $1 AND segment_id = $2
	`, customerID, segmentID)
	return err
}
