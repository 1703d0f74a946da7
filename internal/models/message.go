package models

import "time"

type MessageStatus string

const (
	MessagePending   MessageStatus = "PENDING"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageFailed    MessageStatus = "FAILED"
)

// Message records one delivery attempt to one customer during a campaign
// execution. Rows are never deleted and a terminal status never regresses.
type Message struct {
	ID          string
	CampaignID  string
	CustomerID  string
	Content     string
	Status      MessageStatus
	SentAt      *time.Time
	DeliveredAt *time.Time
	FailedAt    *time.Time
	Error       *string
	CreatedAt   time.Time
}

type MessageStats struct {
	Pending   int `json:"pending"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}
