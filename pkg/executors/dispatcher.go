// Package executors runs individual workflow steps against the delivery
// channels, with retry and circuit-breaker protection around every external
// call.
package executors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripline/dripline/pkg/delivery"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/reliability"
	"github.com/dripline/dripline/pkg/template"
)

// DefaultCallTimeout bounds one provider call, independent of retry backoff,
// so a hung provider cannot occupy an execution slot indefinitely.
const DefaultCallTimeout = 30 * time.Second

// Dispatcher implements the scheduler's ActionRunner with one executor per
// action kind. The switch over the closed ActionType enum is exhaustive:
// adding a kind without handling it here fails the unknown-type branch in
// tests immediately.
type Dispatcher struct {
	contacts    persistence.ContactRepository
	email       delivery.EmailChannel
	sms         delivery.SMSChannel
	renderer    *template.Renderer
	retrier     *reliability.Retrier
	breakers    *reliability.BreakerSet
	logger      *slog.Logger
	callTimeout time.Duration
}

func NewDispatcher(
	contacts persistence.ContactRepository,
	email delivery.EmailChannel,
	sms delivery.SMSChannel,
	renderer *template.Renderer,
	retrier *reliability.Retrier,
	breakers *reliability.BreakerSet,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		contacts:    contacts,
		email:       email,
		sms:         sms,
		renderer:    renderer,
		retrier:     retrier,
		breakers:    breakers,
		logger:      logger.With("module", "executors"),
		callTimeout: DefaultCallTimeout,
	}
}

// Run executes one step and reports the outcome in the result; it never
// panics the run. Failures land in the result for the scheduler's
// continue-on-error policy.
func (d *Dispatcher) Run(ctx context.Context, execution *models.Execution, action models.Action, contact *models.Contact) models.ActionResult {
	result := models.ActionResult{
		Index:      execution.CurrentAction,
		Type:       action.Type,
		ExecutedAt: time.Now().UTC(),
	}

	switch action.Type {
	case models.ActionSendEmail:
		d.sendEmail(ctx, execution, action, contact, &result)
	case models.ActionSendSMS:
		d.sendSMS(ctx, execution, action, contact, &result)
	case models.ActionAddTag:
		d.addTag(ctx, action, contact, &result)
	case models.ActionDelay:
		// Delays are served by the scheduler before the step runs.
		result.Success = true
	default:
		result.Error = fmt.Sprintf("unknown action type %q", action.Type)
	}

	if !result.Success && result.Error != "" {
		d.logger.WarnContext(ctx, "Action failed",
			"execution_id", execution.ID,
			"action", string(action.Type),
			"index", result.Index,
			"error", result.Error)
	}

	return result
}

// sendEmail renders and delivers one email. Consent is re-checked live:
// it can be revoked during a delay between match and execution.
func (d *Dispatcher) sendEmail(ctx context.Context, execution *models.Execution, action models.Action, contact *models.Contact, result *models.ActionResult) {
	if action.Email == nil {
		result.Error = "send_email action has no email config"

		return
	}

	if contact == nil || contact.Email == "" {
		result.Error = "no recipient contact"

		return
	}

	if !contact.EmailConsent {
		// Expected skip, not a failure: the contact opted out after the
		// execution was created.
		result.Success = true
		result.Error = "skipped: email consent revoked"
		d.logger.InfoContext(ctx, "Email skipped, consent revoked",
			"execution_id", execution.ID, "contact_id", contact.ID)

		return
	}

	bindings := template.Bindings(contact, execution.TriggerEvent)

	subject, err := d.renderer.Render(action.Email.Subject, bindings)
	if err != nil {
		result.Error = err.Error()

		return
	}

	body, err := d.renderer.Render(action.Email.Body, bindings)
	if err != nil {
		result.Error = err.Error()

		return
	}

	message := delivery.EmailMessage{To: contact.Email, Subject: subject, Body: body}

	var sent delivery.Result

	// The channel marks transient failures retryable itself; permanent
	// provider rejections fail the first attempt.
	err = d.protectedCall(ctx, "email", func(ctx context.Context) error {
		var sendErr error

		sent, sendErr = d.email.SendEmail(ctx, message)

		return sendErr
	})
	if err != nil {
		result.Error = err.Error()

		return
	}

	result.Success = true
	result.ExternalID = sent.ExternalID
}

func (d *Dispatcher) sendSMS(ctx context.Context, execution *models.Execution, action models.Action, contact *models.Contact, result *models.ActionResult) {
	if action.SMS == nil {
		result.Error = "send_sms action has no sms config"

		return
	}

	if d.sms == nil {
		result.Error = "sms channel not configured"

		return
	}

	if contact == nil || contact.Phone == "" {
		result.Error = "no recipient phone number"

		return
	}

	if !contact.SMSConsent {
		result.Success = true
		result.Error = "skipped: sms consent revoked"
		d.logger.InfoContext(ctx, "SMS skipped, consent revoked",
			"execution_id", execution.ID, "contact_id", contact.ID)

		return
	}

	body, err := d.renderer.Render(action.SMS.Message, template.Bindings(contact, execution.TriggerEvent))
	if err != nil {
		result.Error = err.Error()

		return
	}

	message := delivery.SMSMessage{To: contact.Phone, Body: body}

	var sent delivery.Result

	err = d.protectedCall(ctx, "sms", func(ctx context.Context) error {
		var sendErr error

		sent, sendErr = d.sms.SendSMS(ctx, message)

		return sendErr
	})
	if err != nil {
		result.Error = err.Error()

		return
	}

	result.Success = true
	result.ExternalID = sent.ExternalID
}

// addTag is a pure data mutation: idempotent, no external dependency, so no
// breaker and no retry. Failures are still recorded.
func (d *Dispatcher) addTag(ctx context.Context, action models.Action, contact *models.Contact, result *models.ActionResult) {
	if action.Tag == nil || action.Tag.Tag == "" {
		result.Error = "add_tag action has no tag config"

		return
	}

	if contact == nil {
		result.Error = "no contact to tag"

		return
	}

	if err := d.contacts.AddTag(ctx, contact.ID, action.Tag.Tag); err != nil {
		result.Error = err.Error()

		return
	}

	result.Success = true
}

// protectedCall wraps one provider call in timeout, circuit breaker and
// retry, in that nesting order: each retry attempt is its own bounded call
// through the breaker.
func (d *Dispatcher) protectedCall(ctx context.Context, channel string, op func(ctx context.Context) error) error {
	breaker := d.breakers.For(channel)

	return d.retrier.Do(ctx, "send_"+channel, func(ctx context.Context) error {
		return breaker.Execute(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
			defer cancel()

			return op(callCtx)
		})
	})
}
