package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/campaignify/xenocrm/internal/models"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateWithItems inserts the order, its items and the owning customer's
// aggregate bump in one transaction. Either all three land or none do.
func (r *OrderRepo) CreateWithItems(ctx context.Context, o *models.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.CustomerID, o.Amount, o.Currency, o.Status, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.OrderID = o.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE customers
		SET total_spent = total_spent + $2,
		    visit_count = visit_count + 1,
		    last_visit = $3,
		    updated_at = $3
		WHERE id = $1
	`, o.CustomerID, o.Amount, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("update customer aggregates: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit: %w", err)
	}
	committed = true
	return nil
}

func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, amount, currency, status, created_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Amount, &o.Currency, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// AggregateByCustomer recomputes the customer's order aggregates from the
// orders table, the source of truth for total_spent and visit_count.
func (r *OrderRepo) AggregateByCustomer(ctx context.Context, customerID string) (totalSpent float64, orderCount int, lastOrder *time.Time, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*), MAX(created_at)
		FROM orders
		WHERE customer_id = $1
	`, customerID).Scan(&totalSpent, &orderCount, &lastOrder)
	return totalSpent, orderCount, lastOrder, err
}

// CountsByCustomerIDs groups orders by customer for order-count rule
// predicates. Customers with no orders are absent from the result.
func (r *OrderRepo) CountsByCustomerIDs(ctx context.Context, customerIDs []string) (map[string]int, error) {
	if len(customerIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT customer_id, COUNT(*)
		FROM orders
		WHERE customer_id = ANY($1)
		GROUP BY customer_id
	`, pq.Array(customerIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int, len(customerIDs))
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}
