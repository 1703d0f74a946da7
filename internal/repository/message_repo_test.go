package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignify/xenocrm/internal/models"
)

func TestMessageRepoStatsByCampaign(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("DELIVERED", 8).
		AddRow("FAILED", 2)
	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("camp-1").
		WillReturnRows(rows)

	stats, err := NewMessageRepo(db).StatsByCampaign(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageStats{Delivered: 8, Failed: 2}, stats)
}

func TestMessageRepoStatsByCampaignNoMessages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT status, COUNT").
		WithArgs("camp-empty").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}))

	stats, err := NewMessageRepo(db).StatsByCampaign(context.Background(), "camp-empty")
	require.NoError(t, err)
	assert.Equal(t, models.MessageStats{}, stats)
}

func TestMessageRepoMarkDeliveredGuardsPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE messages SET status").
		WithArgs("msg-1", models.MessageDelivered, at, models.MessagePending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewMessageRepo(db).MarkDelivered(context.Background(), "msg-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoMarkFailedRecordsReason(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE messages SET status").
		WithArgs("msg-1", models.MessageFailed, at, "vendor: message delivery failed", models.MessagePending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewMessageRepo(db).MarkFailed(context.Background(), "msg-1", at, "vendor: message delivery failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoListByCampaignMapsNullError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "campaign_id", "customer_id", "content", "status",
		"sent_at", "delivered_at", "failed_at", "error", "created_at",
	}).
		AddRow("msg-1", "camp-1", "cust-1", "Hi A", "DELIVERED", &now, &now, nil, nil, now).
		AddRow("msg-2", "camp-1", "cust-2", "Hi B", "FAILED", &now, nil, &now, "vendor: message delivery failed", now)

	mock.ExpectQuery("SELECT .+ FROM messages").
		WithArgs("camp-1").
		WillReturnRows(rows)

	messages, err := NewMessageRepo(db).ListByCampaign(context.Background(), "camp-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Nil(t, messages[0].Error)
	assert.NotNil(t, messages[0].DeliveredAt)

	require.NotNil(t, messages[1].Error)
	assert.Equal(t, "vendor: message delivery failed", *messages[1].Error)
	assert.Nil(t, messages[1].DeliveredAt)
}
