package models

import "time"

// CampaignStatus is the lifecycle state of a one-off batch campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
)

// Campaign is a one-off batch send to a contact segment, distinct from
// event-triggered workflows. Batches of one campaign run sequentially;
// independent campaigns proceed in parallel.
type Campaign struct {
	ID        string         `json:"id"`
	StoreID   string         `json:"store_id" validate:"required"`
	Name      string         `json:"name"     validate:"required,min=3"`
	Channel   Channel        `json:"channel"  validate:"required"`
	Segment   string         `json:"segment,omitempty"` // empty segment targets all consented contacts
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body" validate:"required"`
	Schedule  string         `json:"schedule,omitempty"` // cron expression; empty means send on demand
	Status    CampaignStatus `json:"status"`
	SentCount int            `json:"sent_count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
