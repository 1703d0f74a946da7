package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/apperrors"
	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/repository"
)

type OrderRepo interface {
	CreateWithItems(ctx context.Context, o *models.Order) error
	ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
}

type CustomerSyncer interface {
	SyncCustomer(ctx context.Context, customerID string) error
}

// OrderService ingests orders. The order, its items and the customer
// aggregate bump are one transaction; segment membership is resynced after.
type OrderService struct {
	orders    OrderRepo
	customers CustomerGetter
	syncer    CustomerSyncer
	retry     *repository.Retryer
	log       *logrus.Entry
}

func NewOrderService(orders OrderRepo, customers CustomerGetter, syncer CustomerSyncer, retry *repository.Retryer, log *logrus.Entry) *OrderService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &OrderService{orders: orders, customers: customers, syncer: syncer, retry: retry, log: log}
}

func (s *OrderService) Create(ctx context.Context, o *models.Order) error {
	if o.CustomerID == "" {
		return apperrors.Validationf("order customer_id is required")
	}
	if o.Amount <= 0 {
		return apperrors.Validationf("order amount must be positive")
	}
	for _, item := range o.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return apperrors.Validationf("order items need a product_id and a positive quantity")
		}
	}

	var customer *models.Customer
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		customer, err = s.customers.GetByID(ctx, o.CustomerID)
		return err
	}); err != nil {
		return err
	}
	if customer == nil {
		return apperrors.NotFound("customer", o.CustomerID)
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.orders.CreateWithItems(ctx, o)
	}); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	// Membership resync is best-effort: the aggregates already landed in the
	// order transaction, and the next sync converges the cache.
	if err := s.syncer.SyncCustomer(ctx, o.CustomerID); err != nil {
		s.log.WithError(err).WithField("customer_id", o.CustomerID).Warn("segment resync after order failed")
	}
	return nil
}

func (s *OrderService) ListByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		orders, err = s.orders.ListByCustomer(ctx, customerID)
		return err
	})
	return orders, err
}
