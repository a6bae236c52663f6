package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// Engine ties the matcher and scheduler together: one trigger event in,
// zero or more executions started.
type Engine struct {
	persistence persistence.Persistence
	matcher     *Matcher
	scheduler   *Scheduler
	logger      *slog.Logger
}

func NewEngine(p persistence.Persistence, matcher *Matcher, scheduler *Scheduler, logger *slog.Logger) *Engine {
	return &Engine{
		persistence: p,
		matcher:     matcher,
		scheduler:   scheduler,
		logger:      logger.With("module", "engine"),
	}
}

// HandleTrigger matches the event against the store's active workflows and
// starts an execution per match. Matches run independently; one workflow's
// failure does not stop the others.
func (e *Engine) HandleTrigger(ctx context.Context, event models.TriggerEvent, contactID string) error {
	workflows, err := e.persistence.Workflows().ListActive(ctx, event.StoreID, event.Type)
	if err != nil {
		return fmt.Errorf("listing active workflows: %w", err)
	}

	if len(workflows) == 0 {
		return nil
	}

	var contact *models.Contact

	if contactID != "" {
		contact, err = e.persistence.Contacts().ByID(ctx, contactID)
		if err != nil && !errors.Is(err, persistence.ErrContactNotFound) {
			return fmt.Errorf("loading contact: %w", err)
		}
	}

	matched := e.matcher.Match(event, contact, workflows)
	if len(matched) == 0 {
		return nil
	}

	e.logger.InfoContext(ctx, "Trigger matched workflows",
		"event_id", event.ID, "trigger", string(event.Type), "matches", len(matched))

	var failures []error

	for _, workflow := range matched {
		if _, err := e.scheduler.Start(ctx, event, contactID, workflow); err != nil {
			e.logger.ErrorContext(ctx, "Failed to start execution",
				"workflow_id", workflow.ID, "event_id", event.ID, "error", err)
			failures = append(failures, err)
		}
	}

	return errors.Join(failures...)
}
