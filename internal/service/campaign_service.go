package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/apperrors"
	"github.com/campaignify/xenocrm/internal/concurrency"
	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/personalize"
	"github.com/campaignify/xenocrm/internal/repository"
)

type CampaignRepo interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	List(ctx context.Context) ([]models.Campaign, error)
	UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) error
	UpdateStatusIf(ctx context.Context, id string, from, to models.CampaignStatus) (bool, error)
	Schedule(ctx context.Context, id string, scheduledFor *time.Time) (bool, error)
}

// AudienceResolver is the slice of SegmentService the orchestrator needs.
type AudienceResolver interface {
	Get(ctx context.Context, id string) (*models.Segment, error)
	ResolveAudience(ctx context.Context, segmentID string) ([]models.Customer, error)
	Count(ctx context.Context, segmentID string) (int, error)
}

type Dispatcher interface {
	SendMessage(ctx context.Context, campaignID, customerID, content string) (*models.Message, error)
	Stats(ctx context.Context, campaignID string) (models.MessageStats, error)
}

// CampaignService drives the campaign state machine:
// DRAFT -> SCHEDULED -> SENDING -> COMPLETED|FAILED.
type CampaignService struct {
	campaigns      CampaignRepo
	audience       AudienceResolver
	dispatcher     Dispatcher
	personalizer   personalize.Personalizer
	retry          *repository.Retryer
	maxConcurrency int
	log            *logrus.Entry
}

func NewCampaignService(campaigns CampaignRepo, audience AudienceResolver, dispatcher Dispatcher, personalizer personalize.Personalizer, retry *repository.Retryer, maxConcurrency int, log *logrus.Entry) *CampaignService {
	if personalizer == nil {
		personalizer = personalize.Template{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CampaignService{
		campaigns:      campaigns,
		audience:       audience,
		dispatcher:     dispatcher,
		personalizer:   personalizer,
		retry:          retry,
		maxConcurrency: maxConcurrency,
		log:            log,
	}
}

func (s *CampaignService) Create(ctx context.Context, name, description, segmentID string) (*models.Campaign, error) {
	if name == "" {
		return nil, apperrors.Validationf("campaign name is required")
	}
	// The segment must exist before a campaign can target it.
	if _, err := s.audience.Get(ctx, segmentID); err != nil {
		return nil, err
	}

	c := &models.Campaign{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		SegmentID:   segmentID,
		Status:      models.CampaignDraft,
	}
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.campaigns.Create(ctx, c)
	}); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignService) Get(ctx context.Context, id string) (*models.Campaign, error) {
	return s.getCampaign(ctx, id)
}

func (s *CampaignService) List(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		campaigns, err = s.campaigns.List(ctx)
		return err
	})
	return campaigns, err
}

// Schedule moves a DRAFT campaign to SCHEDULED. A nil scheduledFor means the
// campaign is eligible for execution immediately; a future time defers it to
// the poller.
func (s *CampaignService) Schedule(ctx context.Context, id string, scheduledFor *time.Time) (*models.Campaign, error) {
	c, err := s.getCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	var scheduled bool
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		scheduled, err = s.campaigns.Schedule(ctx, id, scheduledFor)
		return err
	}); err != nil {
		return nil, err
	}
	if !scheduled {
		return nil, apperrors.Preconditionf("campaign %s is %s, only DRAFT campaigns can be scheduled", id, c.Status)
	}

	c.Status = models.CampaignScheduled
	c.ScheduledFor = scheduledFor
	return c, nil
}

// Execute runs a SCHEDULED campaign to completion. The SCHEDULED -> SENDING
// flip is a single conditional update performed before audience resolution,
// so a concurrent Execute observes SENDING and fails the precondition
// instead of double-sending. Individual message failures never fail the
// campaign; any orchestration error moves it to FAILED and is returned.
func (s *CampaignService) Execute(ctx context.Context, id string) error {
	c, err := s.getCampaign(ctx, id)
	if err != nil {
		return err
	}

	var won bool
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		won, err = s.campaigns.UpdateStatusIf(ctx, id, models.CampaignScheduled, models.CampaignSending)
		return err
	}); err != nil {
		return err
	}
	if !won {
		return apperrors.Preconditionf("campaign %s is %s, not SCHEDULED", id, c.Status)
	}

	if err := s.run(ctx, c); err != nil {
		if failErr := s.retry.Do(ctx, func(ctx context.Context) error {
			return s.campaigns.UpdateStatus(ctx, id, models.CampaignFailed)
		}); failErr != nil {
			s.log.WithError(failErr).WithField("campaign_id", id).Error("failed to mark campaign FAILED")
		}
		return fmt.Errorf("execute campaign %s: %w", id, err)
	}
	return nil
}

func (s *CampaignService) run(ctx context.Context, c *models.Campaign) error {
	audience, err := s.audience.ResolveAudience(ctx, c.SegmentID)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"campaign_id":   c.ID,
		"audience_size": len(audience),
	}).Info("dispatching campaign")

	concurrency.ForEach(ctx, s.maxConcurrency, len(audience), func(ctx context.Context, i int) {
		customer := audience[i]
		content := s.content(ctx, customer, c)
		if _, err := s.dispatcher.SendMessage(ctx, c.ID, customer.ID, content); err != nil {
			// Dispatch infrastructure errors are logged per message; they do
			// not fail the campaign.
			s.log.WithError(err).WithFields(logrus.Fields{
				"campaign_id": c.ID,
				"customer_id": customer.ID,
			}).Warn("message dispatch failed")
		}
	})

	return s.retry.Do(ctx, func(ctx context.Context) error {
		return s.campaigns.UpdateStatus(ctx, c.ID, models.CampaignCompleted)
	})
}

// content asks the personalizer for per-customer copy, falling back to the
// static template on any failure. Personalization never blocks a campaign.
func (s *CampaignService) content(ctx context.Context, customer models.Customer, c *models.Campaign) string {
	text, err := s.personalizer.Personalize(ctx, customer, c.Description)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.log.WithError(err).WithField("customer_id", customer.ID).Debug("personalization failed, using template")
		}
		return personalize.Fallback(customer, c.Description)
	}
	return text
}

type CampaignStats struct {
	Campaign     *models.Campaign    `json:"campaign"`
	AudienceSize int                 `json:"totalAudienceSize"`
	Messages     models.MessageStats `json:"messageStatusCounts"`
}

// Stats recomputes the audience size from the live rules rather than any
// materialized membership, and reads message counts from one aggregate.
func (s *CampaignService) Stats(ctx context.Context, id string) (*CampaignStats, error) {
	c, err := s.getCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	size, err := s.audience.Count(ctx, c.SegmentID)
	if err != nil {
		return nil, err
	}
	msgStats, err := s.dispatcher.Stats(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	return &CampaignStats{Campaign: c, AudienceSize: size, Messages: msgStats}, nil
}

func (s *CampaignService) getCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var c *models.Campaign
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.campaigns.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NotFound("campaign", id)
	}
	return c, nil
}
