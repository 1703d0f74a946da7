package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/apperrors"
	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/repository"
)

type CustomerRepo interface {
	Upsert(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	GetByEmail(ctx context.Context, email string) (*models.Customer, error)
	List(ctx context.Context, filter repository.CustomerFilter) ([]models.Customer, error)
}

type CustomerService struct {
	customers CustomerRepo
	syncer    CustomerSyncer
	retry     *repository.Retryer
	log       *logrus.Entry
}

func NewCustomerService(customers CustomerRepo, syncer CustomerSyncer, retry *repository.Retryer, log *logrus.Entry) *CustomerService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CustomerService{customers: customers, syncer: syncer, retry: retry, log: log}
}

// Upsert creates or updates a customer keyed by email, then resyncs segment
// membership for the refreshed record.
func (s *CustomerService) Upsert(ctx context.Context, c *models.Customer) error {
	if strings.TrimSpace(c.Email) == "" {
		return apperrors.Validationf("customer email is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return apperrors.Validationf("customer name is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.customers.Upsert(ctx, c)
	}); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	if err := s.syncer.SyncCustomer(ctx, c.ID); err != nil {
		s.log.WithError(err).WithField("customer_id", c.ID).Warn("segment resync after upsert failed")
	}
	return nil
}

func (s *CustomerService) Get(ctx context.Context, id string) (*models.Customer, error) {
	var c *models.Customer
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.customers.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NotFound("customer", id)
	}
	return c, nil
}

func (s *CustomerService) GetByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var c *models.Customer
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.customers.GetByEmail(ctx, email)
		return err
	})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NotFound("customer", email)
	}
	return c, nil
}

func (s *CustomerService) List(ctx context.Context, filter repository.CustomerFilter) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		customers, err = s.customers.List(ctx, filter)
		return err
	})
	return customers, err
}
