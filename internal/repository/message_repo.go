package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/campaignify/xenocrm/internal/models"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, campaign_id, customer_id, content, status, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.CampaignID, m.CustomerID, m.Content, m.Status, m.SentAt, m.CreatedAt)
	return err
}

// MarkDelivered transitions a PENDING message to DELIVERED. The status guard
// keeps terminal states from regressing.
func (r *MessageRepo) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = $2, delivered_at = $3
		WHERE id = $1 AND status = $4
	`, id, models.MessageDelivered, at.UTC(), models.MessagePending)
	return err
}

// MarkFailed transitions a PENDING message to FAILED with the vendor reason.
func (r *MessageRepo) MarkFailed(ctx context.Context, id string, at time.Time, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = $2, failed_at = $3, error = $4
		WHERE id = $1 AND status = $5
	`, id, models.MessageFailed, at.UTC(), reason, models.MessagePending)
	return err
}

// StatsByCampaign aggregates message statuses in a single grouped query
// instead of loading every row.
func (r *MessageRepo) StatsByCampaign(ctx context.Context, campaignID string) (models.MessageStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM messages
		WHERE campaign_id = $1
		GROUP BY status
	`, campaignID)
	if err != nil {
		return models.MessageStats{}, err
	}
	defer rows.Close()

	var stats models.MessageStats
	for rows.Next() {
		var status models.MessageStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return models.MessageStats{}, err
		}
		switch status {
		case models.MessagePending:
			stats.Pending = n
		case models.MessageDelivered:
			stats.Delivered = n
		case models.MessageFailed:
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}

func (r *MessageRepo) ListByCampaign(ctx context.Context, campaignID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, customer_id, content, status, sent_at, delivered_at, failed_at, error, created_at
		FROM messages
		WHERE campaign_id = $1
		ORDER BY created_at DESC, id
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var errStr sql.NullString
		if err := rows.Scan(&m.ID, &m.CampaignID, &m.CustomerID, &m.Content, &m.Status, &m.SentAt, &m.DeliveredAt, &m.FailedAt, &errStr, &m.CreatedAt); err != nil {
			return nil, err
		}
		if errStr.Valid {
			m.Error = &errStr.String
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
