package models

import "time"

// TriggerType identifies the canonical kind of a commerce event.
type TriggerType string

const (
	TriggerOrderCreated      TriggerType = "order_created"
	TriggerOrderUpdated      TriggerType = "order_updated"
	TriggerOrderPaid         TriggerType = "order_paid"
	TriggerOrderFulfilled    TriggerType = "order_fulfilled"
	TriggerOrderPartiallyFulfilled TriggerType = "order_partially_fulfilled"
	TriggerOrderCancelled    TriggerType = "order_cancelled"
	TriggerOrderRefunded     TriggerType = "order_refunded"
	TriggerOrderDelivered    TriggerType = "order_delivered"
	TriggerCustomerCreated   TriggerType = "customer_created"
	TriggerCustomerUpdated   TriggerType = "customer_updated"
	TriggerCustomerEnabled   TriggerType = "customer_enabled"
	TriggerCustomerDisabled  TriggerType = "customer_disabled"
	TriggerCheckoutCreated   TriggerType = "checkout_created"
	TriggerCheckoutUpdated   TriggerType = "checkout_updated"
	TriggerCartAbandoned     TriggerType = "cart_abandoned"
	TriggerProductCreated    TriggerType = "product_created"
	TriggerProductUpdated    TriggerType = "product_updated"
	TriggerProductDeleted    TriggerType = "product_deleted"
	TriggerFulfillmentCreated TriggerType = "fulfillment_created"
	TriggerFulfillmentUpdated TriggerType = "fulfillment_updated"
	TriggerRefundCreated     TriggerType = "refund_created"
	TriggerDraftOrderCreated TriggerType = "draft_order_created"
	TriggerSubscriptionStarted   TriggerType = "subscription_started"
	TriggerSubscriptionCancelled TriggerType = "subscription_cancelled"
	TriggerContactSubscribed     TriggerType = "contact_subscribed"
	TriggerContactUnsubscribed   TriggerType = "contact_unsubscribed"
)

// TriggerEvent is the canonical internal representation of one upstream
// commerce notification. It is ephemeral: only the processed-event log used
// for idempotency outlives the pipeline run.
type TriggerEvent struct {
	ID        string         `json:"id"         validate:"required"`
	Type      TriggerType    `json:"type"       validate:"required"`
	StoreID   string         `json:"store_id"   validate:"required"`
	ContactID string         `json:"contact_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
