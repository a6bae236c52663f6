package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dripline/dripline/pkg/eventbus"
	"github.com/dripline/dripline/pkg/events"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// ActionRunner executes a single non-delay workflow step. Implementations
// never return an error: failures are reported inside the result and the
// scheduler's continue-on-error policy decides what happens next.
type ActionRunner interface {
	Run(ctx context.Context, execution *models.Execution, action models.Action, contact *models.Contact) models.ActionResult
}

// Scheduler owns the execution state machine. It creates executions for
// matched workflows, steps through their actions, parks them on delays and
// quiet hours, and finishes them under the continue-on-error policy.
type Scheduler struct {
	persistence persistence.Persistence
	runner      ActionRunner
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	locks       *keyedMutex
	workerID    string
	now         func() time.Time
}

// NewScheduler wires a scheduler. The publisher may be nil when no bus is
// attached (tests, single-process mode without lifecycle consumers).
func NewScheduler(p persistence.Persistence, runner ActionRunner, publisher eventbus.EventPublisher, logger *slog.Logger, workerID string) *Scheduler {
	return &Scheduler{
		persistence: p,
		runner:      runner,
		publisher:   publisher,
		logger:      logger.With("module", "scheduler", "worker_id", workerID),
		locks:       newKeyedMutex(),
		workerID:    workerID,
		now:         time.Now,
	}
}

// Start creates an execution for one matched workflow and drives it until it
// parks or finishes. A redelivered trigger hits the idempotency-key unique
// constraint and returns (nil, nil): not an error, just nothing new to run.
func (s *Scheduler) Start(ctx context.Context, event models.TriggerEvent, contactID string, workflow *models.Workflow) (*models.Execution, error) {
	snapshot := *workflow

	execution := &models.Execution{
		ID:             uuid.NewString(),
		IdempotencyKey: models.IdempotencyKey(workflow.ID, contactID, event.ID),
		WorkflowID:     workflow.ID,
		StoreID:        workflow.StoreID,
		ContactID:      contactID,
		Workflow:       &snapshot,
		TriggerEvent:   event,
		Status:         models.ExecutionPending,
	}

	err := s.persistence.Executions().Create(ctx, execution)
	if errors.Is(err, persistence.ErrExecutionExists) {
		s.logger.InfoContext(ctx, "Duplicate trigger suppressed",
			"workflow_id", workflow.ID, "contact_id", contactID, "event_id", event.ID)

		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("creating execution: %w", err)
	}

	if err := s.Advance(ctx, execution); err != nil {
		return execution, err
	}

	return execution, nil
}

// Advance runs the step loop from the execution's current action. The
// per-(workflow, contact) lock serializes concurrent advances of the same
// pair; it is held only while steps actually run, never across a wait.
func (s *Scheduler) Advance(ctx context.Context, execution *models.Execution) error {
	unlock := s.locks.lock(execution.WorkflowID + "|" + execution.ContactID)
	defer unlock()

	if execution.Status.Terminal() {
		return nil
	}

	workflow := execution.Workflow
	if workflow == nil || len(workflow.Actions) == 0 {
		return s.fail(ctx, execution, "execution has no workflow snapshot")
	}

	if execution.Status == models.ExecutionPending {
		execution.Status = models.ExecutionRunning

		if err := s.persistence.Executions().Save(ctx, execution); err != nil {
			return fmt.Errorf("saving execution: %w", err)
		}

		// Started precedes any other lifecycle event, even when the opening
		// action's delay parks the execution immediately.
		s.publish(ctx, execution.StoreID, events.ExecutionStarted{
			BaseEvent:   s.baseEvent(events.ExecutionStartedEvent, execution.StoreID),
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
			ContactID:   execution.ContactID,
		})

		if wait := workflow.Actions[0].PreDelay(); wait > 0 {
			return s.suspend(ctx, execution, s.now().Add(wait))
		}
	}

	execution.Status = models.ExecutionRunning

	store := s.storeFor(ctx, execution.StoreID)

	for execution.CurrentAction < len(workflow.Actions) {
		contact := s.contactFor(ctx, execution.ContactID)

		if reason, met := exitConditionMet(workflow.Trigger.ExitCondition, execution, contact); met {
			return s.cancel(ctx, execution, reason)
		}

		action := workflow.Actions[execution.CurrentAction]

		if resumeAt, deferred := s.quietHoursDeferral(workflow, action, store); deferred {
			return s.suspend(ctx, execution, resumeAt)
		}

		result := s.runAction(ctx, execution, action, contact)
		execution.RecordResult(result)
		execution.CurrentAction++

		if err := s.persistence.Executions().Save(ctx, execution); err != nil {
			return fmt.Errorf("saving execution after step: %w", err)
		}

		// Look ahead: the next step's delay parks the execution now, so a
		// crash during the wait recovers through the resume-at sweep.
		if execution.CurrentAction < len(workflow.Actions) {
			if wait := workflow.Actions[execution.CurrentAction].PreDelay(); wait > 0 {
				return s.suspend(ctx, execution, s.now().Add(wait))
			}
		}
	}

	return s.finish(ctx, execution)
}

// runAction dispatches one step. Delay steps are pure scheduling artifacts;
// their wait was served before the step became current.
func (s *Scheduler) runAction(ctx context.Context, execution *models.Execution, action models.Action, contact *models.Contact) models.ActionResult {
	if action.Type == models.ActionDelay {
		return models.ActionResult{
			Index:      execution.CurrentAction,
			Type:       action.Type,
			Success:    true,
			ExecutedAt: s.now().UTC(),
		}
	}

	return s.runner.Run(ctx, execution, action, contact)
}

// quietHoursDeferral reports whether a sending step must wait for the store's
// quiet window to close. Deferred, never dropped.
func (s *Scheduler) quietHoursDeferral(workflow *models.Workflow, action models.Action, store *models.Store) (time.Time, bool) {
	if !workflow.Trigger.RespectQuietHours || store == nil {
		return time.Time{}, false
	}

	if _, sends := action.ChannelFor(); !sends {
		return time.Time{}, false
	}

	quietHours := store.QuietHours
	if quietHours == (models.QuietHours{}) {
		quietHours = models.DefaultQuietHours()
	}

	localNow := s.now().In(store.Location())
	if !quietHours.Contains(localNow) {
		return time.Time{}, false
	}

	return quietHours.NextEnd(localNow).UTC(), true
}

func (s *Scheduler) suspend(ctx context.Context, execution *models.Execution, resumeAt time.Time) error {
	resumeAt = resumeAt.UTC()
	execution.Status = models.ExecutionWaiting
	execution.ResumeAt = &resumeAt

	if err := s.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("suspending execution: %w", err)
	}

	s.logger.InfoContext(ctx, "Execution suspended",
		"execution_id", execution.ID, "resume_at", resumeAt)

	s.publish(ctx, execution.StoreID, events.ExecutionSuspended{
		BaseEvent:   s.baseEvent(events.ExecutionSuspendedEvent, execution.StoreID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		ResumeAt:    resumeAt,
	})

	return nil
}

func (s *Scheduler) finish(ctx context.Context, execution *models.Execution) error {
	now := s.now().UTC()
	execution.Status = models.ExecutionCompleted
	execution.ResumeAt = nil
	execution.CompletedAt = &now

	if err := s.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("completing execution: %w", err)
	}

	s.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID, "workflow_id", execution.WorkflowID,
		"steps", len(execution.Results), "errors", len(execution.Errors))

	s.publish(ctx, execution.StoreID, events.ExecutionCompleted{
		BaseEvent:   s.baseEvent(events.ExecutionCompletedEvent, execution.StoreID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Duration:    now.Sub(execution.CreatedAt),
	})

	return nil
}

func (s *Scheduler) cancel(ctx context.Context, execution *models.Execution, reason string) error {
	now := s.now().UTC()
	execution.Status = models.ExecutionCancelled
	execution.ResumeAt = nil
	execution.CompletedAt = &now

	if err := s.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("cancelling execution: %w", err)
	}

	s.logger.InfoContext(ctx, "Execution cancelled by exit condition",
		"execution_id", execution.ID, "reason", reason)

	s.publish(ctx, execution.StoreID, events.ExecutionCancelled{
		BaseEvent:   s.baseEvent(events.ExecutionCancelledEvent, execution.StoreID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Reason:      reason,
	})

	return nil
}

func (s *Scheduler) fail(ctx context.Context, execution *models.Execution, message string) error {
	now := s.now().UTC()
	execution.Status = models.ExecutionFailed
	execution.ResumeAt = nil
	execution.CompletedAt = &now
	execution.Errors = append(execution.Errors, models.ExecutionError{
		ActionIndex: execution.CurrentAction,
		Message:     message,
		OccurredAt:  now,
	})

	if err := s.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failing execution: %w", err)
	}

	s.logger.ErrorContext(ctx, "Execution failed",
		"execution_id", execution.ID, "error", message)

	s.publish(ctx, execution.StoreID, events.ExecutionFailed{
		BaseEvent:   s.baseEvent(events.ExecutionFailedEvent, execution.StoreID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		Error:       message,
	})

	return nil
}

func (s *Scheduler) contactFor(ctx context.Context, contactID string) *models.Contact {
	if contactID == "" {
		return nil
	}

	contact, err := s.persistence.Contacts().ByID(ctx, contactID)
	if err != nil {
		return nil
	}

	return contact
}

func (s *Scheduler) storeFor(ctx context.Context, storeID string) *models.Store {
	store, err := s.persistence.Stores().ByID(ctx, storeID)
	if err != nil {
		return nil
	}

	return store
}

func (s *Scheduler) baseEvent(eventType events.EventType, storeID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, storeID)
	base.WorkerID = s.workerID

	return base
}

func (s *Scheduler) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", string(event.GetType()), "error", err)
	}
}

// exitConditionMet checks the workflow's exit condition against the live
// contact, once per step before the step runs.
func exitConditionMet(condition models.ExitCondition, execution *models.Execution, contact *models.Contact) (string, bool) {
	if condition.Kind == models.ExitNone || contact == nil {
		return "", false
	}

	switch condition.Kind {
	case models.ExitUnsubscribed:
		if !contact.EmailConsent && !contact.SMSConsent {
			return "contact unsubscribed", true
		}
	case models.ExitTagAdded:
		if condition.Tag != "" && contact.HasTag(condition.Tag) {
			return "tag " + condition.Tag + " added", true
		}
	case models.ExitOrderPlaced:
		if contact.LastOrderAt != nil && contact.LastOrderAt.After(execution.CreatedAt) {
			return "order placed", true
		}
	}

	return "", false
}
