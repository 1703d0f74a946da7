package models

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignScheduled CampaignStatus = "SCHEDULED"
	CampaignSending   CampaignStatus = "SENDING"
	CampaignCompleted CampaignStatus = "COMPLETED"
	CampaignFailed    CampaignStatus = "FAILED"
)

// Campaign targets exactly one segment. Status only moves forward:
// DRAFT -> SCHEDULED -> SENDING -> COMPLETED|FAILED.
type Campaign struct {
	ID           string
	Name         string
	Description  string
	SegmentID    string
	Status       CampaignStatus
	ScheduledFor *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
