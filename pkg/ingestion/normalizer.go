// Package ingestion converts raw upstream commerce payloads into canonical
// trigger events, keeping the contact database current along the way.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dripline/dripline/pkg/dedupe"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// DefaultAbandonThreshold is how long a checkout may sit incomplete before
// it counts as abandoned.
const DefaultAbandonThreshold = 60 * time.Minute

// Result reports what Normalize did with a payload. Processed is false for
// unsupported topics and redelivered duplicates; neither is an error.
type Result struct {
	Processed bool
	Event     *models.TriggerEvent
	Contact   *models.Contact

	dedupeKey string
}

// Normalizer turns verified upstream payloads into trigger events. The
// contact upsert is durable before the event is returned, so downstream
// filter evaluation sees consistent contact data.
type Normalizer struct {
	persistence      persistence.Persistence
	deduper          dedupe.Deduper
	logger           *slog.Logger
	abandonThreshold time.Duration
}

func NewNormalizer(p persistence.Persistence, deduper dedupe.Deduper, logger *slog.Logger, abandonThreshold time.Duration) *Normalizer {
	if abandonThreshold <= 0 {
		abandonThreshold = DefaultAbandonThreshold
	}

	return &Normalizer{
		persistence:      p,
		deduper:          deduper,
		logger:           logger.With("module", "normalizer"),
		abandonThreshold: abandonThreshold,
	}
}

// Normalize processes one upstream payload addressed by topic and shop
// domain. Store resolution failures are terminal: they signal misrouted
// input, not transient trouble.
func (n *Normalizer) Normalize(ctx context.Context, topic, domain string, raw []byte) (Result, error) {
	trigger, supported := TriggerForTopic(topic)
	if !supported {
		n.logger.InfoContext(ctx, "Skipping unsupported topic", "topic", topic)

		return Result{}, nil
	}

	store, err := n.persistence.Stores().ByDomain(ctx, domain)
	if err != nil {
		return Result{}, fmt.Errorf("resolving store for domain %q: %w", domain, err)
	}

	if err := validatePayload(topic, raw); err != nil {
		return Result{}, err
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	// Update topics recur for the same entity; updated_at distinguishes
	// genuine new events from webhook redelivery of an old one.
	eventID := topic + ":" + payloadString(data["id"])
	if raw, ok := data["updated_at"].(string); ok && raw != "" {
		eventID += ":" + raw
	}

	dedupeKey := store.ID + "|" + eventID

	first, err := n.deduper.MarkIfFirst(ctx, dedupeKey)
	if err != nil {
		return Result{}, fmt.Errorf("checking event dedupe: %w", err)
	}

	if !first {
		n.logger.InfoContext(ctx, "Dropping redelivered event", "event_id", eventID, "store_id", store.ID)

		return Result{}, nil
	}

	result := Result{Processed: true, dedupeKey: dedupeKey}

	if patch, ok := contactPatch(data); ok {
		contact, err := n.persistence.Contacts().Upsert(ctx, store.ID, patch)
		if err != nil {
			n.unmark(ctx, dedupeKey)

			return Result{}, fmt.Errorf("upserting contact: %w", err)
		}

		result.Contact = contact
	}

	if strings.HasPrefix(topic, "checkouts/") {
		trigger, eventID, err = n.trackCheckout(ctx, store, data, trigger, eventID)
		if err != nil {
			n.unmark(ctx, dedupeKey)

			return Result{}, err
		}
	}

	event := &models.TriggerEvent{
		ID:        eventID,
		Type:      trigger,
		StoreID:   store.ID,
		Data:      data,
		Timestamp: payloadTime(data, "updated_at", "created_at"),
	}
	if result.Contact != nil {
		event.ContactID = result.Contact.ID
	}

	result.Event = event

	n.logger.InfoContext(ctx, "Normalized event", "event_id", event.ID, "trigger", string(trigger), "store_id", store.ID)

	return result, nil
}

// Release drops the dedupe mark of a processed result so upstream
// redelivery can retry the event. Callers use it when the handoff after
// normalization fails, for example a bus publish error.
func (n *Normalizer) Release(ctx context.Context, result Result) {
	if result.dedupeKey == "" {
		return
	}

	n.unmark(ctx, result.dedupeKey)
}

// unmark is best effort: a failed delete leaves the event absorbed, which
// at-most-once processing tolerates, so it only logs.
func (n *Normalizer) unmark(ctx context.Context, key string) {
	if err := n.deduper.Unmark(ctx, key); err != nil {
		n.logger.WarnContext(ctx, "Failed to unmark event for redelivery", "key", key, "error", err)
	}
}

// trackCheckout records the checkout snapshot and runs abandoned detection
// on updates. A checkout past the threshold without completing fires one
// synthetic cart_abandoned event; the persisted flag stops re-fires.
func (n *Normalizer) trackCheckout(ctx context.Context, store *models.Store, data map[string]any, trigger models.TriggerType, eventID string) (models.TriggerType, string, error) {
	checkoutID := payloadString(data["id"])

	checkout := &models.Checkout{
		ID:      checkoutID,
		StoreID: store.ID,
		Email:   strings.ToLower(extractEmail(data)),
		Data:    data,
	}

	if raw, ok := data["completed_at"].(string); ok {
		if completedAt, err := time.Parse(time.RFC3339, raw); err == nil {
			completedAt = completedAt.UTC()
			checkout.CompletedAt = &completedAt
		}
	}

	if err := n.persistence.Checkouts().Upsert(ctx, checkout); err != nil {
		return trigger, eventID, fmt.Errorf("tracking checkout %s: %w", checkoutID, err)
	}

	if trigger != models.TriggerCheckoutUpdated {
		return trigger, eventID, nil
	}

	stored, err := n.persistence.Checkouts().ByID(ctx, store.ID, checkoutID)
	if err != nil {
		return trigger, eventID, fmt.Errorf("reloading checkout %s: %w", checkoutID, err)
	}

	if stored.Completed() || stored.Abandoned || time.Since(stored.CreatedAt) < n.abandonThreshold {
		return trigger, eventID, nil
	}

	fired, err := n.persistence.Checkouts().MarkAbandoned(ctx, store.ID, checkoutID)
	if err != nil {
		return trigger, eventID, fmt.Errorf("marking checkout %s abandoned: %w", checkoutID, err)
	}

	if !fired {
		return trigger, eventID, nil
	}

	n.logger.InfoContext(ctx, "Checkout abandoned", "checkout_id", checkoutID, "store_id", store.ID)

	return models.TriggerCartAbandoned, "checkouts/abandoned:" + checkoutID, nil
}
