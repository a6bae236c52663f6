// Package models defines the core domain models for the marketing-automation engine.
package models

import "time"

// FilterOperator is the comparison applied by a trigger filter predicate.
type FilterOperator string

const (
	OperatorEquals      FilterOperator = "equals"
	OperatorNotEquals   FilterOperator = "not_equals"
	OperatorContains    FilterOperator = "contains"
	OperatorGreaterThan FilterOperator = "greater_than"
	OperatorLessThan    FilterOperator = "less_than"
)

// Filter is one predicate over trigger-event data or contact fields. All
// filters of a workflow must hold for the workflow to match (logical AND).
type Filter struct {
	Field    string         `json:"field"    validate:"required"`
	Operator FilterOperator `json:"operator" validate:"required"`
	Value    any            `json:"value"`
}

// ExitKind enumerates the conditions that cancel an in-flight execution
// before its remaining steps run.
type ExitKind string

const (
	ExitNone         ExitKind = ""
	ExitUnsubscribed ExitKind = "unsubscribed"
	ExitTagAdded     ExitKind = "tag_added"
	ExitOrderPlaced  ExitKind = "order_placed"
)

// ExitCondition describes when an execution should stop early. Tag is only
// meaningful for ExitTagAdded.
type ExitCondition struct {
	Kind ExitKind `json:"kind,omitempty"`
	Tag  string   `json:"tag,omitempty"`
}

// TriggerConfig is the merchant-authored trigger configuration of a workflow.
type TriggerConfig struct {
	Filters              []Filter      `json:"filters,omitempty" validate:"dive"`
	ExitCondition        ExitCondition `json:"exit_condition,omitempty"`
	SendToSubscribedOnly *bool         `json:"send_to_subscribed_only,omitempty"`
	RespectQuietHours    bool          `json:"respect_quiet_hours,omitempty"`
}

// SubscribedOnly reports the consent gate flag, defaulting to true when the
// builder left it unset.
func (tc TriggerConfig) SubscribedOnly() bool {
	if tc.SendToSubscribedOnly == nil {
		return true
	}

	return *tc.SendToSubscribedOnly
}

// Workflow is a merchant-authored trigger + conditions + actions template.
// The engine reads definitions; writes belong to the builder UI.
type Workflow struct {
	ID          string        `json:"id"`
	StoreID     string        `json:"store_id" validate:"required"`
	Name        string        `json:"name"     validate:"required,min=3"`
	TriggerType TriggerType   `json:"trigger_type" validate:"required"`
	Trigger     TriggerConfig `json:"trigger"`
	Actions     []Action      `json:"actions" validate:"required,min=1,dive"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
