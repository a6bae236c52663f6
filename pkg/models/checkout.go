package models

import "time"

// Checkout tracks an upstream checkout for abandoned-cart detection. The
// Abandoned flag persists the fact that a cart_abandoned event already fired,
// so later updates to the same checkout never re-fire it.
type Checkout struct {
	ID          string         `json:"id"`
	StoreID     string         `json:"store_id" validate:"required"`
	Email       string         `json:"email,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Abandoned   bool           `json:"abandoned"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Completed reports whether the checkout converted into an order.
func (c *Checkout) Completed() bool {
	return c.CompletedAt != nil
}
