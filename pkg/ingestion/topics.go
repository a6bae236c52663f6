package ingestion

import "github.com/dripline/dripline/pkg/models"

// topicTriggers is the fixed mapping from upstream webhook topics to
// canonical trigger types. Topics absent from this table are acknowledged
// and dropped, never failed, so new upstream topics cannot break ingestion.
var topicTriggers = map[string]models.TriggerType{
	"orders/create":              models.TriggerOrderCreated,
	"orders/updated":             models.TriggerOrderUpdated,
	"orders/paid":                models.TriggerOrderPaid,
	"orders/fulfilled":           models.TriggerOrderFulfilled,
	"orders/partially_fulfilled": models.TriggerOrderPartiallyFulfilled,
	"orders/cancelled":           models.TriggerOrderCancelled,
	"orders/delivered":           models.TriggerOrderDelivered,
	"refunds/create":             models.TriggerRefundCreated,
	"customers/create":           models.TriggerCustomerCreated,
	"customers/update":           models.TriggerCustomerUpdated,
	"customers/enable":           models.TriggerCustomerEnabled,
	"customers/disable":          models.TriggerCustomerDisabled,
	"checkouts/create":           models.TriggerCheckoutCreated,
	"checkouts/update":           models.TriggerCheckoutUpdated,
	"products/create":            models.TriggerProductCreated,
	"products/update":            models.TriggerProductUpdated,
	"products/delete":            models.TriggerProductDeleted,
	"fulfillments/create":        models.TriggerFulfillmentCreated,
	"fulfillments/update":        models.TriggerFulfillmentUpdated,
	"draft_orders/create":        models.TriggerDraftOrderCreated,
	"subscriptions/create":       models.TriggerSubscriptionStarted,
	"subscriptions/cancel":       models.TriggerSubscriptionCancelled,
	"contacts/subscribe":         models.TriggerContactSubscribed,
	"contacts/unsubscribe":       models.TriggerContactUnsubscribed,
}

// TriggerForTopic resolves a webhook topic to its trigger type.
func TriggerForTopic(topic string) (models.TriggerType, bool) {
	trigger, ok := topicTriggers[topic]

	return trigger, ok
}
