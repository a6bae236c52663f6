package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	return p
}

func TestContactUpsert_CreatesThenPatches(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	name := "Grace"
	consent := true

	created, err := p.Contacts().Upsert(ctx, "store-1", models.ContactPatch{
		Email:        "grace@example.com",
		FirstName:    &name,
		EmailConsent: &consent,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.EmailConsent)

	spent := 200.0
	updated, err := p.Contacts().Upsert(ctx, "store-1", models.ContactPatch{
		Email:      "Grace@Example.com",
		TotalSpent: &spent,
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID, "upsert is keyed by (store, email), case-insensitively")
	assert.Equal(t, "Grace", updated.FirstName, "absent fields stay untouched")
	assert.InDelta(t, 200.0, updated.TotalSpent, 0.001)

	other, err := p.Contacts().Upsert(ctx, "store-2", models.ContactPatch{Email: "grace@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID, "identity is scoped per store")
}

func TestContactAddTag(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	contact, err := p.Contacts().Upsert(ctx, "store-1", models.ContactPatch{Email: "t@example.com"})
	require.NoError(t, err)

	require.NoError(t, p.Contacts().AddTag(ctx, contact.ID, "vip"))
	require.NoError(t, p.Contacts().AddTag(ctx, contact.ID, "vip"))

	reloaded, err := p.Contacts().ByID(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, reloaded.Tags)

	err = p.Contacts().AddTag(ctx, "missing", "vip")
	assert.ErrorIs(t, err, persistence.ErrContactNotFound)
}

func TestStoreByDomain(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	store := &models.Store{Name: "Acme Outdoors", Domain: "acme.example.com", Active: true}
	require.NoError(t, p.Stores().Save(ctx, store))

	found, err := p.Stores().ByDomain(ctx, "ACME.example.com")
	require.NoError(t, err)
	assert.Equal(t, store.ID, found.ID)

	_, err = p.Stores().ByDomain(ctx, "unknown.example.com")
	assert.ErrorIs(t, err, persistence.ErrStoreNotFound)
}

func TestWorkflowListActive(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	active := &models.Workflow{
		StoreID:     "store-1",
		Name:        "Welcome series",
		TriggerType: models.TriggerCustomerCreated,
		IsActive:    true,
		Actions:     []models.Action{{Type: models.ActionSendEmail, Email: &models.EmailActionConfig{Subject: "s", Body: "b"}}},
	}
	inactive := &models.Workflow{
		StoreID:     "store-1",
		Name:        "Paused series",
		TriggerType: models.TriggerCustomerCreated,
		IsActive:    false,
		Actions:     []models.Action{{Type: models.ActionAddTag, Tag: &models.TagActionConfig{Tag: "x"}}},
	}
	otherTrigger := &models.Workflow{
		StoreID:     "store-1",
		Name:        "Abandoned cart",
		TriggerType: models.TriggerCartAbandoned,
		IsActive:    true,
		Actions:     []models.Action{{Type: models.ActionSendSMS, SMS: &models.SMSActionConfig{Message: "m"}}},
	}

	for _, w := range []*models.Workflow{active, inactive, otherTrigger} {
		require.NoError(t, p.Workflows().Save(ctx, w))
	}

	matches, err := p.Workflows().ListActive(ctx, "store-1", models.TriggerCustomerCreated)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, active.ID, matches[0].ID)
}

func TestExecutionCreate_IdempotencyConflict(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	key := models.IdempotencyKey("wf-1", "c-1", "evt-1")

	first := &models.Execution{IdempotencyKey: key, WorkflowID: "wf-1", ContactID: "c-1", Status: models.ExecutionPending}
	require.NoError(t, p.Executions().Create(ctx, first))

	dup := &models.Execution{IdempotencyKey: key, WorkflowID: "wf-1", ContactID: "c-1", Status: models.ExecutionPending}
	err := p.Executions().Create(ctx, dup)
	assert.ErrorIs(t, err, persistence.ErrExecutionExists)

	found, err := p.Executions().ByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestExecutionClaimDue(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := &models.Execution{
		IdempotencyKey: models.IdempotencyKey("wf-1", "c-1", "e-1"),
		Status:         models.ExecutionWaiting,
		ResumeAt:       &past,
	}
	notDue := &models.Execution{
		IdempotencyKey: models.IdempotencyKey("wf-1", "c-2", "e-2"),
		Status:         models.ExecutionWaiting,
		ResumeAt:       &future,
	}
	running := &models.Execution{
		IdempotencyKey: models.IdempotencyKey("wf-1", "c-3", "e-3"),
		Status:         models.ExecutionRunning,
	}

	for _, e := range []*models.Execution{due, notDue, running} {
		require.NoError(t, p.Executions().Create(ctx, e))
	}

	claimed, err := p.Executions().ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, models.ExecutionRunning, claimed[0].Status)
	assert.Nil(t, claimed[0].ResumeAt)

	// A second sweep must not hand the same execution out again.
	claimed, err = p.Executions().ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestCheckoutMarkAbandoned_FiresOnce(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	checkout := &models.Checkout{ID: "chk-1", StoreID: "store-1", Email: "a@b.com"}
	require.NoError(t, p.Checkouts().Upsert(ctx, checkout))

	first, err := p.Checkouts().MarkAbandoned(ctx, "store-1", "chk-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := p.Checkouts().MarkAbandoned(ctx, "store-1", "chk-1")
	require.NoError(t, err)
	assert.False(t, second, "the abandoned flag fires exactly once")

	// Later upserts never reset the flag.
	require.NoError(t, p.Checkouts().Upsert(ctx, &models.Checkout{ID: "chk-1", StoreID: "store-1"}))

	reloaded, err := p.Checkouts().ByID(ctx, "store-1", "chk-1")
	require.NoError(t, err)
	assert.True(t, reloaded.Abandoned)
}
