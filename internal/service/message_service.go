package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/campaignify/xenocrm/internal/apperrors"
	"github.com/campaignify/xenocrm/internal/delivery"
	"github.com/campaignify/xenocrm/internal/models"
	"github.com/campaignify/xenocrm/internal/repository"
)

type MessageRepo interface {
	Create(ctx context.Context, m *models.Message) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, at time.Time, reason string) error
	StatsByCampaign(ctx context.Context, campaignID string) (models.MessageStats, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]models.Message, error)
}

type CustomerGetter interface {
	GetByID(ctx context.Context, id string) (*models.Customer, error)
}

// MessageService dispatches one message to one customer through the delivery
// channel and records the outcome. A vendor failure is recorded on the
// message and never returned as an error; only store failures propagate.
type MessageService struct {
	messages  MessageRepo
	customers CustomerGetter
	channel   delivery.Channel
	retry     *repository.Retryer
	log       *logrus.Entry
}

func NewMessageService(messages MessageRepo, customers CustomerGetter, channel delivery.Channel, retry *repository.Retryer, log *logrus.Entry) *MessageService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MessageService{messages: messages, customers: customers, channel: channel, retry: retry, log: log}
}

func (s *MessageService) SendMessage(ctx context.Context, campaignID, customerID, content string) (*models.Message, error) {
	var customer *models.Customer
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		customer, err = s.customers.GetByID(ctx, customerID)
		return err
	}); err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, apperrors.NotFound("customer", customerID)
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ID:         uuid.NewString(),
		CampaignID: campaignID,
		CustomerID: customerID,
		Content:    content,
		Status:     models.MessagePending,
		SentAt:     &now,
	}
	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.messages.Create(ctx, msg)
	}); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	result, err := s.channel.Deliver(ctx, *customer, content)
	if err != nil {
		// Channel infrastructure failure, distinct from a vendor "no".
		// Record it on the message, then surface it.
		at := time.Now().UTC()
		if markErr := s.retry.Do(ctx, func(ctx context.Context) error {
			return s.messages.MarkFailed(ctx, msg.ID, at, err.Error())
		}); markErr != nil {
			s.log.WithError(markErr).WithField("message_id", msg.ID).Error("failed to record delivery error")
		}
		return nil, fmt.Errorf("deliver message %s: %w", msg.ID, err)
	}

	at := time.Now().UTC()
	if result.Success {
		if err := s.retry.Do(ctx, func(ctx context.Context) error {
			return s.messages.MarkDelivered(ctx, msg.ID, at)
		}); err != nil {
			return nil, fmt.Errorf("mark message delivered: %w", err)
		}
		msg.Status = models.MessageDelivered
		msg.DeliveredAt = &at
		return msg, nil
	}

	if err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.messages.MarkFailed(ctx, msg.ID, at, result.Error)
	}); err != nil {
		return nil, fmt.Errorf("mark message failed: %w", err)
	}
	msg.Status = models.MessageFailed
	msg.FailedAt = &at
	reason := result.Error
	msg.Error = &reason
	return msg, nil
}

// Stats aggregates per-campaign delivery outcomes with one grouped query.
func (s *MessageService) Stats(ctx context.Context, campaignID string) (models.MessageStats, error) {
	var stats models.MessageStats
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		stats, err = s.messages.StatsByCampaign(ctx, campaignID)
		return err
	})
	return stats, err
}

func (s *MessageService) ListByCampaign(ctx context.Context, campaignID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		messages, err = s.messages.ListByCampaign(ctx, campaignID)
		return err
	})
	return messages, err
}
