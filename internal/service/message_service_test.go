package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignify/xenocrm/internal/apperrors"
	"github.com/campaignify/xenocrm/internal/delivery"
	"github.com/campaignify/xenocrm/internal/models"
)

// scriptedChannel returns a fixed verdict for every delivery.
type scriptedChannel struct {
	result delivery.Result
	err    error
}

func (c scriptedChannel) Deliver(_ context.Context, _ models.Customer, _ string) (delivery.Result, error) {
	return c.result, c.err
}

func newMessageService(repo *fakeMessageRepo, channel delivery.Channel) *MessageService {
	getter := &fakeCustomerGetter{customers: map[string]*models.Customer{
		"cust-1": {ID: "cust-1", Name: "Priya"},
	}}
	return NewMessageService(repo, getter, channel, testRetryer(), nil)
}

func TestSendMessageDelivered(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newMessageService(repo, scriptedChannel{result: delivery.Result{Success: true}})

	msg, err := svc.SendMessage(context.Background(), "camp-1", "cust-1", "Hi Priya, welcome back!")
	require.NoError(t, err)
	assert.Equal(t, models.MessageDelivered, msg.Status)
	assert.NotNil(t, msg.SentAt)
	assert.NotNil(t, msg.DeliveredAt)
	assert.Nil(t, msg.Error)

	require.Len(t, repo.created, 1)
	assert.Contains(t, repo.delivered, msg.ID)
}

func TestSendMessageVendorRejection(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newMessageService(repo, scriptedChannel{
		result: delivery.Result{Success: false, Error: "vendor: message delivery failed"},
	})

	msg, err := svc.SendMessage(context.Background(), "camp-1", "cust-1", "Hi Priya!")
	// A vendor "no" is an outcome, not an error.
	require.NoError(t, err)
	assert.Equal(t, models.MessageFailed, msg.Status)
	assert.NotNil(t, msg.FailedAt)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "vendor: message delivery failed", *msg.Error)
	assert.Equal(t, "vendor: message delivery failed", repo.failed[msg.ID])
}

func TestSendMessageChannelInfrastructureError(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newMessageService(repo, scriptedChannel{err: errors.New("connection refused")})

	_, err := svc.SendMessage(context.Background(), "camp-1", "cust-1", "Hi Priya!")
	require.Error(t, err)
	// The message row still records the failure.
	require.Len(t, repo.created, 1)
	assert.Equal(t, "connection refused", repo.failed[repo.created[0].ID])
}

func TestSendMessageUnknownCustomer(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := newMessageService(repo, scriptedChannel{result: delivery.Result{Success: true}})

	_, err := svc.SendMessage(context.Background(), "camp-1", "nope", "Hi!")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, repo.created)
}

func TestStatsReflectOutcomes(t *testing.T) {
	repo := newFakeMessageRepo()

	okSvc := newMessageService(repo, scriptedChannel{result: delivery.Result{Success: true}})
	_, err := okSvc.SendMessage(context.Background(), "camp-1", "cust-1", "one")
	require.NoError(t, err)
	_, err = okSvc.SendMessage(context.Background(), "camp-1", "cust-1", "two")
	require.NoError(t, err)

	failSvc := newMessageService(repo, scriptedChannel{
		result: delivery.Result{Success: false, Error: "vendor: message delivery failed"},
	})
	_, err = failSvc.SendMessage(context.Background(), "camp-1", "cust-1", "three")
	require.NoError(t, err)

	stats, err := okSvc.Stats(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageStats{Pending: 0, Delivered: 2, Failed: 1}, stats)
}
