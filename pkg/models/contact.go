package models

import (
	"slices"
	"time"
)

// Contact is a store-owned person record, unique per (store_id, email).
type Contact struct {
	ID           string     `json:"id"`
	StoreID      string     `json:"store_id"   validate:"required"`
	Email        string     `json:"email"      validate:"required,email"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	EmailConsent bool       `json:"email_consent"`
	SMSConsent   bool       `json:"sms_consent"`
	TotalSpent   float64    `json:"total_spent"`
	OrderCount   int        `json:"order_count"`
	Tags         []string   `json:"tags,omitempty"`
	Segments     []string   `json:"segments,omitempty"`
	LastOrderAt  *time.Time `json:"last_order_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasTag reports whether the contact carries the given tag.
func (c *Contact) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// AddTag inserts a tag if absent and reports whether the set changed.
func (c *Contact) AddTag(tag string) bool {
	if c.HasTag(tag) {
		return false
	}

	c.Tags = append(c.Tags, tag)

	return true
}

// ConsentFor returns the contact's live consent flag for a delivery channel.
func (c *Contact) ConsentFor(channel Channel) bool {
	switch channel {
	case ChannelEmail:
		return c.EmailConsent
	case ChannelSMS:
		return c.SMSConsent
	default:
		return false
	}
}

// ContactPatch carries partial-update semantics for the normalizer upsert:
// nil fields leave the stored value untouched. Consent pointers are set only
// when the upstream payload carries an explicit marketing-consent indicator.
type ContactPatch struct {
	Email        string     `json:"email" validate:"required,email"`
	FirstName    *string    `json:"first_name,omitempty"`
	LastName     *string    `json:"last_name,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	EmailConsent *bool      `json:"email_consent,omitempty"`
	SMSConsent   *bool      `json:"sms_consent,omitempty"`
	TotalSpent   *float64   `json:"total_spent,omitempty"`
	OrderCount   *int       `json:"order_count,omitempty"`
	LastOrderAt  *time.Time `json:"last_order_at,omitempty"`
	AddTags      []string   `json:"add_tags,omitempty"`
	AddSegments  []string   `json:"add_segments,omitempty"`
}

// Apply merges the patch into an existing contact record.
func (p ContactPatch) Apply(c *Contact) {
	if p.FirstName != nil {
		c.FirstName = *p.FirstName
	}

	if p.LastName != nil {
		c.LastName = *p.LastName
	}

	if p.Phone != nil {
		c.Phone = *p.Phone
	}

	if p.EmailConsent != nil {
		c.EmailConsent = *p.EmailConsent
	}

	if p.SMSConsent != nil {
		c.SMSConsent = *p.SMSConsent
	}

	if p.TotalSpent != nil {
		c.TotalSpent = *p.TotalSpent
	}

	if p.OrderCount != nil {
		c.OrderCount = *p.OrderCount
	}

	if p.LastOrderAt != nil {
		c.LastOrderAt = p.LastOrderAt
	}

	for _, tag := range p.AddTags {
		c.AddTag(tag)
	}

	for _, segment := range p.AddSegments {
		if !slices.Contains(c.Segments, segment) {
			c.Segments = append(c.Segments, segment)
		}
	}
}
