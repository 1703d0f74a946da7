package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campaignify/xenocrm/internal/models"
)

type CampaignRepo struct {
	db *sql.DB
}

func NewCampaignRepo(db *sql.DB) *CampaignRepo {
	return &CampaignRepo{db: db}
}

const campaignColumns = `id, name, description, segment_id, status, scheduled_for, created_at, updated_at`

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, description, segment_id, status, scheduled_for, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Name, c.Description, c.SegmentID, c.Status, c.ScheduledFor, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CampaignRepo) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	err := r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Description, &c.SegmentID, &c.Status, &c.ScheduledFor, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) List(ctx context.Context) ([]models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.SegmentID, &c.Status, &c.ScheduledFor, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// UpdateStatus sets the status unconditionally. Reserved for terminal
// transitions where the caller already owns the campaign (SENDING ->
// COMPLETED/FAILED).
func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $2, updated_at = $3 WHERE id = $1
	`, id, status, time.Now().UTC())
	return err
}

// UpdateStatusIf flips status from -> to as a single conditional update and
// reports whether this call won the transition. Concurrent executors race on
// this statement; exactly one sees true.
func (r *CampaignRepo) UpdateStatusIf(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2
	`, id, from, to, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Schedule moves a DRAFT campaign to SCHEDULED, optionally with a future
// execution time, using the same conditional-update discipline.
func (r *CampaignRepo) Schedule(ctx context.Context, id string, scheduledFor *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $2, scheduled_for = $3, updated_at = $4
		WHERE id = $1 AND status = $5
	`, id, models.CampaignScheduled, scheduledFor, time.Now().UTC(), models.CampaignDraft)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListDue returns SCHEDULED campaigns whose execution time has arrived. The
// campaign row itself is the durable scheduled-job record; the cron poller
// calling this survives process restarts, unlike an in-memory timer.
func (r *CampaignRepo) ListDue(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE status = $1 AND scheduled_for IS NOT NULL AND scheduled_for <= $2
		ORDER BY scheduled_for, id
	`, models.CampaignScheduled, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.SegmentID, &c.Status, &c.ScheduledFor, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}
