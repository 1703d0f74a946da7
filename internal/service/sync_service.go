package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/apperrors"
	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/repository"
	"github.com/campaignify/xenocrm/internal/rules"
)

type CustomerSyncStore interface {
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	UpdateStats(ctx context.Context, id string, totalSpent float64, visitCount int, lastVisit *time.Time) error
}

type OrderAggregator interface {
	AggregateByCustomer(ctx context.Context, customerID string) (float64, int, *time.Time, error)
}

type MembershipStore interface {
	List(ctx context.Context) ([]models.Segment, error)
	UpsertMember(ctx context.Context, customerID, segmentID string) error
	RemoveMember(ctx context.Context, customerID, segmentID string) error
}

// SyncService refreshes a customer's denormalized order aggregates and the
// materialized segment-membership cache. Run after order ingestion or any
// customer mutation. Each step is idempotent and individually retried, so a
// partially applied sync converges on the next run.
type SyncService struct {
	customers CustomerSyncStore
	orders    OrderAggregator
	segments  MembershipStore
	eval      *rules.Evaluator
	retry     *repository.Retryer
	log       *logrus.Entry
}

func NewSyncService(customers CustomerSyncStore, orders OrderAggregator, segments MembershipStore, eval *rules.Evaluator, retry *repository.Retryer, log *logrus.Entry) *SyncService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SyncService{customers: customers, orders: orders, segments: segments, eval: eval, retry: retry, log: log}
}

func (s *SyncService) SyncCustomer(ctx context.Context, customerID string) error {
	var (
		totalSpent float64
		orderCount int
		lastOrder  *time.Time
	)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		totalSpent, orderCount, lastOrder, err = s.orders.AggregateByCustomer(ctx, customerID)
		return err
	})
	if err != nil {
		return fmt.Errorf("aggregate orders for customer %s: %w", customerID, err)
	}

	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.customers.UpdateStats(ctx, customerID, totalSpent, orderCount, lastOrder)
	}); err != nil {
		return fmt.Errorf("update stats for customer %s: %w", customerID, err)
	}

	var customer *models.Customer
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		customer, err = s.customers.GetByID(ctx, customerID)
		return err
	}); err != nil {
		return err
	}
	if customer == nil {
		return apperrors.NotFound("customer", customerID)
	}

	var segments []models.Segment
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		segments, err = s.segments.List(ctx)
		return err
	}); err != nil {
		return err
	}

	// O(segments) per customer update; fine at small segment counts.
	for _, seg := range segments {
		rs, err := rules.Parse(seg.Rules)
		if err != nil {
			s.log.WithError(err).WithField("segment_id", seg.ID).Warn("skipping segment with malformed rules")
			continue
		}
		matched, err := s.eval.Matches(ctx, rs, *customer)
		if err != nil {
			return fmt.Errorf("evaluate segment %s: %w", seg.ID, err)
		}

		segID := seg.ID
		if matched {
			err = s.retry.Do(ctx, func(ctx context.Context) error {
				return s.segments.UpsertMember(ctx, customerID, segID)
			})
		} else {
			err = s.retry.Do(ctx, func(ctx context.Context) error {
				return s.segments.RemoveMember(ctx, customerID, segID)
			})
		}
		if err != nil {
			return fmt.Errorf("sync membership for segment %s: %w", seg.ID, err)
		}
	}
	return nil
}
