package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/apperrors"
	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/repository"
	"github.com/campaignify/xenocrm/internal/rules"
)

// Repos required by the segment service (interfaces so tests can fake them).
type SegmentRepo interface {
	Create(ctx context.Context, s *models.Segment) error
	GetByID(ctx context.Context, id string) (*models.Segment, error)
	List(ctx context.Context) ([]models.Segment, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type CustomerStore interface {
	List(ctx context.Context, filter repository.CustomerFilter) ([]models.Customer, error)
	Count(ctx context.Context, filter repository.CustomerFilter) (int, error)
}

type SegmentService struct {
	segments  SegmentRepo
	customers CustomerStore
	eval      *rules.Evaluator
	retry     *repository.Retryer
	log       *logrus.Entry
}

func NewSegmentService(segments SegmentRepo, customers CustomerStore, eval *rules.Evaluator, retry *repository.Retryer, log *logrus.Entry) *SegmentService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SegmentService{segments: segments, customers: customers, eval: eval, retry: retry, log: log}
}

// Create validates that the rule-set parses as one of the supported schemas
// before persisting. The parse failure is surfaced to the caller.
func (s *SegmentService) Create(ctx context.Context, name, description string, ruleSet json.RawMessage) (*models.Segment, error) {
	if name == "" {
		return nil, apperrors.Validationf("segment name is required")
	}
	if _, err := rules.Parse(ruleSet); err != nil {
		return nil, &apperrors.ValidationError{Msg: "invalid rules JSON", Err: err}
	}

	seg := &models.Segment{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Rules:       ruleSet,
	}
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.segments.Create(ctx, seg)
	}); err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	return seg, nil
}

func (s *SegmentService) Get(ctx context.Context, id string) (*models.Segment, error) {
	seg, err := s.getSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	return seg, nil
}

func (s *SegmentService) List(ctx context.Context) ([]models.Segment, error) {
	var segments []models.Segment
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		segments, err = s.segments.List(ctx)
		return err
	})
	return segments, err
}

func (s *SegmentService) Delete(ctx context.Context, id string) error {
	var deleted bool
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.segments.Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFound("segment", id)
	}
	return nil
}

// ResolveAudience evaluates the segment's rules against the live customer
// set. Country equality is pushed down to the store query; the rest runs in
// memory. The result is deterministic for a fixed store state.
func (s *SegmentService) ResolveAudience(ctx context.Context, segmentID string) ([]models.Customer, error) {
	seg, err := s.getSegment(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	rs, err := rules.Parse(seg.Rules)
	if err != nil {
		return nil, &apperrors.ValidationError{Msg: "stored rules are malformed", Err: err}
	}
	if rs.Empty() {
		// An empty rule-set defines an empty segment, not "everyone".
		return nil, nil
	}

	customers, err := s.listCustomers(ctx, rs)
	if err != nil {
		return nil, err
	}
	return s.eval.Select(ctx, rs, customers)
}

// Count is the count-only fast path. When the rule-set reduces entirely to
// store-level filters no customer rows are materialized.
func (s *SegmentService) Count(ctx context.Context, segmentID string) (int, error) {
	seg, err := s.getSegment(ctx, segmentID)
	if err != nil {
		return 0, err
	}
	rs, err := rules.Parse(seg.Rules)
	if err != nil {
		return 0, &apperrors.ValidationError{Msg: "stored rules are malformed", Err: err}
	}
	if rs.Empty() {
		return 0, nil
	}

	if country, fullyPushed := pushdownOnly(rs); fullyPushed {
		var n int
		err := s.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			n, err = s.customers.Count(ctx, repository.CustomerFilter{Country: country})
			return err
		})
		return n, err
	}

	customers, err := s.listCustomers(ctx, rs)
	if err != nil {
		return 0, err
	}
	matched, err := s.eval.Select(ctx, rs, customers)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (s *SegmentService) getSegment(ctx context.Context, id string) (*models.Segment, error) {
	var seg *models.Segment
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		seg, err = s.segments.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if seg == nil {
		return nil, apperrors.NotFound("segment", id)
	}
	return seg, nil
}

func (s *SegmentService) listCustomers(ctx context.Context, rs rules.RuleSet) ([]models.Customer, error) {
	var filter repository.CustomerFilter
	if country, ok := rs.CountryFilter(); ok {
		filter.Country = country
	}

	var customers []models.Customer
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		customers, err = s.customers.List(ctx, filter)
		return err
	})
	return customers, err
}

// pushdownOnly reports whether every condition in the rule-set is expressible
// as a store filter, returning that filter's country value.
func pushdownOnly(rs rules.RuleSet) (string, bool) {
	country := ""
	for _, c := range rs.Conditions {
		if c.Field != rules.FieldCountry || c.Op != rules.OpEquals {
			return "", false
		}
		country = c.Str
	}
	return country, country != ""
}
