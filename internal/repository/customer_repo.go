package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campaignify/xenocrm/internal/models"
)

type CustomerRepo struct {
	db *sql.DB
}

func NewCustomerRepo(db *sql.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// CustomerFilter narrows List at the store level. Country equality is the
// only predicate worth pushing down; everything else evaluates in memory.
type CustomerFilter struct {
	Country string
}

const customerColumns = `id, name, email, country, total_spent, visit_count, last_visit, created_at, updated_at`

func (r *CustomerRepo) Create(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO customers (id, name, email, country, total_spent, visit_count, last_visit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Email, c.Country, c.TotalSpent, c.VisitCount, c.LastVisit, c.CreatedAt, c.UpdatedAt)
	return err
}

// Upsert creates or updates a customer keyed by email, the import-path
// semantics: an existing row keeps its id and gains the new attributes.
func (r *CustomerRepo) Upsert(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO customers (id, name, email, country, total_spent, visit_count, last_visit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			country = EXCLUDED.country,
			updated_at = EXCLUDED.updated_at
		RETURNING id, total_spent, visit_count, last_visit, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Email, c.Country, c.TotalSpent, c.VisitCount, c.LastVisit, c.CreatedAt, c.UpdatedAt).
		Scan(&c.ID, &c.TotalSpent, &c.VisitCount, &c.LastVisit, &c.CreatedAt)
}

func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	return r.getWhere(ctx, `WHERE id = $1`, id)
}

func (r *CustomerRepo) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return r.getWhere(ctx, `WHERE email = $1`, email)
}

func (r *CustomerRepo) getWhere(ctx context.Context, where string, arg any) (*models.Customer, error) {
	var c models.Customer
	err := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers `+where, arg).Scan(
		&c.ID, &c.Name, &c.Email, &c.Country, &c.TotalSpent, &c.VisitCount, &c.LastVisit, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepo) List(ctx context.Context, filter CustomerFilter) ([]models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	var args []any
	if filter.Country != "" {
		query += ` WHERE country = $1`
		args = append(args, filter.Country)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Country, &c.TotalSpent, &c.VisitCount, &c.LastVisit, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *CustomerRepo) Count(ctx context.Context, filter CustomerFilter) (int, error) {
	query := `SELECT COUNT(*) FROM customers`
	var args []any
	if filter.Country != "" {
		query += ` WHERE country = $1`
		args = append(args, filter.Country)
	}

	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// UpdateStats overwrites the denormalized order aggregates. Used by the sync
// routine after order ingestion.
func (r *CustomerRepo) UpdateStats(ctx context.Context, id string, totalSpent float64, visitCount int, lastVisit *time.Time) error {
	query := `
		UPDATE customers
		SET total_spent = $2, visit_count = $3, last_visit = $4, updated_at = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, totalSpent, visitCount, lastVisit, time.Now().UTC())
	return err
}
