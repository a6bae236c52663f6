package models

import (
	"fmt"
	"time"
)

// Channel identifies a downstream delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ActionType is a closed enum of workflow step kinds. The executor dispatcher
// switches exhaustively over it, so adding a kind is a compile-checked change.
type ActionType string

const (
	ActionSendEmail ActionType = "send_email"
	ActionSendSMS   ActionType = "send_sms"
	ActionDelay     ActionType = "delay"
	ActionAddTag    ActionType = "add_tag"
)

// EmailActionConfig configures a send_email step.
type EmailActionConfig struct {
	TemplateRef string `json:"template_ref,omitempty"`
	Subject     string `json:"subject" validate:"required"`
	Body        string `json:"body"    validate:"required"`
}

// SMSActionConfig configures a send_sms step.
type SMSActionConfig struct {
	Message string `json:"message" validate:"required"`
}

// DelayActionConfig configures a dedicated delay step.
type DelayActionConfig struct {
	DurationMinutes int `json:"duration_minutes" validate:"gte=1"`
}

// TagActionConfig configures an add_tag step.
type TagActionConfig struct {
	Tag string `json:"tag" validate:"required"`
}

// Action is one step of a workflow. Exactly one config field matching Type is
// set. DelayMinutes is a wait applied before the step executes and is honored
// independently of the dedicated delay action kind.
type Action struct {
	Type         ActionType         `json:"type" validate:"required"`
	DelayMinutes int                `json:"delay_minutes,omitempty" validate:"gte=0"`
	Email        *EmailActionConfig `json:"email,omitempty"`
	SMS          *SMSActionConfig   `json:"sms,omitempty"`
	Delay        *DelayActionConfig `json:"delay,omitempty"`
	Tag          *TagActionConfig   `json:"tag,omitempty"`
}

// PreDelay returns the wait to apply before this step runs. A delay-kind step
// contributes its configured duration on top of the per-action delay.
func (a Action) PreDelay() time.Duration {
	d := time.Duration(a.DelayMinutes) * time.Minute
	if a.Type == ActionDelay && a.Delay != nil {
		d += time.Duration(a.Delay.DurationMinutes) * time.Minute
	}

	return d
}

// ChannelFor maps a sending action to its delivery channel; ok is false for
// non-sending steps.
func (a Action) ChannelFor() (Channel, bool) {
	switch a.Type {
	case ActionSendEmail:
		return ChannelEmail, true
	case ActionSendSMS:
		return ChannelSMS, true
	case ActionDelay, ActionAddTag:
		return "", false
	default:
		return "", false
	}
}

// Validate checks that the config variant matches the declared type.
func (a Action) Validate() error {
	switch a.Type {
	case ActionSendEmail:
		if a.Email == nil {
			return fmt.Errorf("action %s: missing email config", a.Type)
		}
	case ActionSendSMS:
		if a.SMS == nil {
			return fmt.Errorf("action %s: missing sms config", a.Type)
		}
	case ActionDelay:
		if a.Delay == nil || a.Delay.DurationMinutes <= 0 {
			return fmt.Errorf("action %s: missing or non-positive delay config", a.Type)
		}
	case ActionAddTag:
		if a.Tag == nil || a.Tag.Tag == "" {
			return fmt.Errorf("action %s: missing tag config", a.Type)
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}

	return nil
}
