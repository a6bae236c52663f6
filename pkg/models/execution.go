package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ExecutionStatus is the state of a workflow execution's state machine.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionWaiting   ExecutionStatus = "waiting"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionCancelled
}

// ActionResult records one attempted step.
type ActionResult struct {
	Index      int        `json:"index"`
	Type       ActionType `json:"type"`
	Success    bool       `json:"success"`
	ExternalID string     `json:"external_id,omitempty"`
	Error      string     `json:"error,omitempty"`
	ExecutedAt time.Time  `json:"executed_at"`
}

// ExecutionError records a per-step failure. Per-step failures are non-fatal
// to the run; they surface in workflow analytics.
type ExecutionError struct {
	ActionIndex int       `json:"action_index"`
	Message     string    `json:"message"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Execution is one running instance of a workflow for one contact and one
// trigger event. The embedded workflow is a definition snapshot: disabling a
// workflow never aborts executions already in flight.
type Execution struct {
	ID             string           `json:"id"`
	IdempotencyKey string           `json:"idempotency_key"`
	WorkflowID     string           `json:"workflow_id"`
	StoreID        string           `json:"store_id"`
	ContactID      string           `json:"contact_id"`
	Workflow       *Workflow        `json:"workflow"`
	TriggerEvent   TriggerEvent     `json:"trigger_event"`
	CurrentAction  int              `json:"current_action"`
	Status         ExecutionStatus  `json:"status"`
	ResumeAt       *time.Time       `json:"resume_at,omitempty"`
	Results        []ActionResult   `json:"results,omitempty"`
	Errors         []ExecutionError `json:"errors,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// IdempotencyKey derives the duplicate-suppression key for an execution.
// Redelivered upstream events hash to the same key and must not spawn a
// second execution for the same workflow and contact.
func IdempotencyKey(workflowID, contactID, eventID string) string {
	sum := sha256.Sum256([]byte(workflowID + "|" + contactID + "|" + eventID))

	return hex.EncodeToString(sum[:])
}

// RecordResult appends a step result, mirroring failures into the error list.
func (e *Execution) RecordResult(result ActionResult) {
	e.Results = append(e.Results, result)

	if !result.Success {
		e.Errors = append(e.Errors, ExecutionError{
			ActionIndex: result.Index,
			Message:     result.Error,
			OccurredAt:  result.ExecutedAt,
		})
	}
}
