package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/dripline/dripline/pkg/eventbus"
	"github.com/dripline/dripline/pkg/events"
	"github.com/dripline/dripline/pkg/ingestion"
)

// Webhook deliveries address their subject out of band, in the style of the
// upstream commerce platforms.
const (
	TopicHeader  = "X-Webhook-Topic"
	DomainHeader = "X-Store-Domain"
)

// IngestHandlers accepts verified webhook deliveries, normalizes them and
// publishes trigger events for the workers.
type IngestHandlers struct {
	normalizer *ingestion.Normalizer
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
}

func NewIngestHandlers(normalizer *ingestion.Normalizer, publisher eventbus.EventPublisher, logger *slog.Logger) *IngestHandlers {
	return &IngestHandlers{
		normalizer: normalizer,
		publisher:  publisher,
		logger:     logger.With("module", "ingest"),
	}
}

// HandleWebhook processes one delivery. Skipped deliveries (unsupported
// topics, redelivered duplicates) still return 200 so the upstream stops
// retrying them.
func (h *IngestHandlers) HandleWebhook(c fiber.Ctx) error {
	topic := c.Get(TopicHeader)
	if topic == "" {
		return badRequest(c, TopicHeader+" header is required")
	}

	domain := c.Get(DomainHeader)
	if domain == "" {
		return badRequest(c, DomainHeader+" header is required")
	}

	result, err := h.normalizer.Normalize(c.Context(), topic, domain, c.Body())
	if err != nil {
		return handleIngestError(c, err)
	}

	if !result.Processed {
		return c.JSON(fiber.Map{"processed": false})
	}

	trigger := events.TriggerReceived{
		BaseEvent: events.NewBaseEvent(events.TriggerReceivedEvent, result.Event.StoreID),
		Event:     *result.Event,
	}
	if result.Contact != nil {
		trigger.ContactID = result.Contact.ID
	}

	// Keyed by store so one tenant's events stay ordered on the bus.
	if err := h.publisher.Publish(c.Context(), result.Event.StoreID, trigger); err != nil {
		// Drop the dedupe mark so the upstream's redelivery of this event
		// is processed instead of absorbed.
		h.normalizer.Release(c.Context(), result)

		h.logger.ErrorContext(c.Context(), "Failed to publish trigger event",
			"event_id", result.Event.ID, "error", err)

		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"processed": true,
		"event_id":  result.Event.ID,
		"trigger":   string(result.Event.Type),
	})
}
