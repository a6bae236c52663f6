package executors

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/delivery"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence/file"
	"github.com/dripline/dripline/pkg/reliability"
	"github.com/dripline/dripline/pkg/template"
)

type fakeEmailChannel struct {
	mu       sync.Mutex
	messages []delivery.EmailMessage
	errs     []error
}

func (f *fakeEmailChannel) SendEmail(_ context.Context, message delivery.EmailMessage) (delivery.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = append(f.messages, message)

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]

		if err != nil {
			return delivery.Result{}, err
		}
	}

	return delivery.Result{ExternalID: "em-1"}, nil
}

type fakeSMSChannel struct {
	mu       sync.Mutex
	messages []delivery.SMSMessage
	errs     []error
}

func (f *fakeSMSChannel) SendSMS(_ context.Context, message delivery.SMSMessage) (delivery.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messages = append(f.messages, message)

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]

		if err != nil {
			return delivery.Result{}, err
		}
	}

	return delivery.Result{ExternalID: "sms-1"}, nil
}

type testHarness struct {
	dispatcher *Dispatcher
	email      *fakeEmailChannel
	sms        *fakeSMSChannel
	contacts   *file.Persistence
	store      *models.Store
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	p, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	store := &models.Store{Name: "Acme Outdoors", Domain: "acme.example.com", Active: true}
	require.NoError(t, p.Stores().Save(context.Background(), store))

	email := &fakeEmailChannel{}
	sms := &fakeSMSChannel{}

	retrier := reliability.NewRetrier(reliability.RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}, slog.Default())
	breakers := reliability.NewBreakerSet(3, time.Minute, slog.Default())

	dispatcher := NewDispatcher(p.Contacts(), email, sms, template.NewRenderer(), retrier, breakers, slog.Default())

	return &testHarness{dispatcher: dispatcher, email: email, sms: sms, contacts: p, store: store}
}

func (h *testHarness) contact(t *testing.T, patch models.ContactPatch) *models.Contact {
	t.Helper()

	contact, err := h.contacts.Contacts().Upsert(context.Background(), h.store.ID, patch)
	require.NoError(t, err)

	return contact
}

func testExecution() *models.Execution {
	return &models.Execution{
		ID: "exec-1",
		TriggerEvent: models.TriggerEvent{
			ID:   "orders/create:1",
			Data: map[string]any{"order_number": "1001"},
		},
	}
}

func emailAction(subject, body string) models.Action {
	return models.Action{Type: models.ActionSendEmail, Email: &models.EmailActionConfig{Subject: subject, Body: body}}
}

func TestRun_SendEmailRendersAndDelivers(t *testing.T) {
	h := newHarness(t)

	consent := true
	name := "Grace"
	contact := h.contact(t, models.ContactPatch{Email: "grace@example.com", EmailConsent: &consent, FirstName: &name})

	result := h.dispatcher.Run(context.Background(), testExecution(),
		emailAction("Order {{ event.order_number }}", "Hi {{ first_name }}!"), contact)

	require.True(t, result.Success)
	assert.Equal(t, "em-1", result.ExternalID)
	require.Len(t, h.email.messages, 1)
	assert.Equal(t, "grace@example.com", h.email.messages[0].To)
	assert.Equal(t, "Order 1001", h.email.messages[0].Subject)
	assert.Equal(t, "Hi Grace!", h.email.messages[0].Body)
}

func TestRun_ConsentRevokedSkipsWithoutChannelCall(t *testing.T) {
	h := newHarness(t)

	contact := h.contact(t, models.ContactPatch{Email: "grace@example.com"})

	result := h.dispatcher.Run(context.Background(), testExecution(), emailAction("s", "b"), contact)

	assert.True(t, result.Success, "a revoked consent is an expected skip, not a failure")
	assert.Contains(t, result.Error, "consent revoked")
	assert.Empty(t, h.email.messages, "no channel call occurs without consent")
}

func TestRun_SendSMSRequiresPhone(t *testing.T) {
	h := newHarness(t)

	consent := true
	contact := h.contact(t, models.ContactPatch{Email: "a@b.com", SMSConsent: &consent})

	action := models.Action{Type: models.ActionSendSMS, SMS: &models.SMSActionConfig{Message: "m"}}
	result := h.dispatcher.Run(context.Background(), testExecution(), action, contact)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "phone")
	assert.Empty(t, h.sms.messages)
}

func TestRun_SendSMSDelivers(t *testing.T) {
	h := newHarness(t)

	consent := true
	phone := "+15551234567"
	contact := h.contact(t, models.ContactPatch{Email: "a@b.com", Phone: &phone, SMSConsent: &consent})

	action := models.Action{Type: models.ActionSendSMS, SMS: &models.SMSActionConfig{Message: "Your cart misses you"}}
	result := h.dispatcher.Run(context.Background(), testExecution(), action, contact)

	require.True(t, result.Success)
	assert.Equal(t, "sms-1", result.ExternalID)
	require.Len(t, h.sms.messages, 1)
	assert.Equal(t, phone, h.sms.messages[0].To)
}

func TestRun_AddTagIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	contact := h.contact(t, models.ContactPatch{Email: "a@b.com"})
	action := models.Action{Type: models.ActionAddTag, Tag: &models.TagActionConfig{Tag: "vip"}}

	first := h.dispatcher.Run(ctx, testExecution(), action, contact)
	second := h.dispatcher.Run(ctx, testExecution(), action, contact)
	assert.True(t, first.Success)
	assert.True(t, second.Success)

	reloaded, err := h.contacts.Contacts().ByID(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, reloaded.Tags)
}

func TestRun_RetriesTransientChannelFailures(t *testing.T) {
	h := newHarness(t)
	h.email.errs = []error{
		reliability.MarkRetryable(errors.New("tls handshake timeout")),
		reliability.MarkRetryable(errors.New("tls handshake timeout")),
	}

	consent := true
	contact := h.contact(t, models.ContactPatch{Email: "a@b.com", EmailConsent: &consent})

	result := h.dispatcher.Run(context.Background(), testExecution(), emailAction("s", "b"), contact)

	assert.True(t, result.Success, "the third attempt succeeds")
	assert.Len(t, h.email.messages, 3)
}

func TestRun_PermanentRejectionNotRetried(t *testing.T) {
	h := newHarness(t)
	h.sms.errs = []error{
		errors.New("SMS gateway returned status 400: invalid recipient"),
		errors.New("SMS gateway returned status 400: invalid recipient"),
		errors.New("SMS gateway returned status 400: invalid recipient"),
	}

	consent := true
	phone := "+15551234567"
	contact := h.contact(t, models.ContactPatch{Email: "a@b.com", Phone: &phone, SMSConsent: &consent})

	action := models.Action{Type: models.ActionSendSMS, SMS: &models.SMSActionConfig{Message: "m"}}
	result := h.dispatcher.Run(context.Background(), testExecution(), action, contact)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid recipient")
	assert.Len(t, h.sms.messages, 1, "a permanent rejection fails on the first attempt")
}

func TestRun_OpenBreakerFailsFastWithoutRetries(t *testing.T) {
	h := newHarness(t)

	consent := true
	contact := h.contact(t, models.ContactPatch{Email: "a@b.com", EmailConsent: &consent})

	// One run of three attempts trips the threshold of 3; once open, calls
	// stop reaching the channel.
	h.email.errs = []error{
		reliability.MarkRetryable(errors.New("boom")),
		reliability.MarkRetryable(errors.New("boom")),
		reliability.MarkRetryable(errors.New("boom")),
	}

	first := h.dispatcher.Run(context.Background(), testExecution(), emailAction("s", "b"), contact)
	assert.False(t, first.Success)

	callsAfterTrip := len(h.email.messages)

	second := h.dispatcher.Run(context.Background(), testExecution(), emailAction("s", "b"), contact)
	assert.False(t, second.Success)
	assert.Contains(t, second.Error, "circuit breaker open")
	assert.Equal(t, callsAfterTrip, len(h.email.messages),
		"an open breaker rejects without invoking the channel or consuming retries")
}

func TestRun_UnknownActionType(t *testing.T) {
	h := newHarness(t)

	result := h.dispatcher.Run(context.Background(), testExecution(), models.Action{Type: "launch_rocket"}, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown action type")
}
