package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"executions", "checkouts", "campaigns", "workflows", "contacts", "stores", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("dripline_test"),
			postgres.WithUsername("dripline"),
			postgres.WithPassword("dripline"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func createTestStore(ctx context.Context, t *testing.T, p *postgresql.Persistence) *models.Store {
	t.Helper()

	store := &models.Store{
		Name:       "Acme Outdoors",
		Domain:     "acme.example.com",
		Timezone:   "America/New_York",
		QuietHours: models.DefaultQuietHours(),
		Active:     true,
	}
	require.NoError(t, p.Stores().Save(ctx, store))

	return store
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	for _, table := range []string{"stores", "contacts", "workflows", "executions", "checkouts", "campaigns"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestContactRepository_UpsertPartialUpdate(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	name := "Grace"
	consent := true

	created, err := p.Contacts().Upsert(ctx, store.ID, models.ContactPatch{
		Email:        "Grace@Example.com",
		FirstName:    &name,
		EmailConsent: &consent,
	})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", created.Email)
	assert.True(t, created.EmailConsent)

	spent := 150.0

	updated, err := p.Contacts().Upsert(ctx, store.ID, models.ContactPatch{
		Email:      "grace@example.com",
		TotalSpent: &spent,
		AddTags:    []string{"vip"},
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Grace", updated.FirstName, "absent fields stay untouched")
	assert.True(t, updated.EmailConsent, "consent survives patches that omit it")
	assert.InDelta(t, 150.0, updated.TotalSpent, 0.001)
	assert.Equal(t, []string{"vip"}, updated.Tags)
}

func TestContactRepository_AddTag(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	contact, err := p.Contacts().Upsert(ctx, store.ID, models.ContactPatch{Email: "t@example.com"})
	require.NoError(t, err)

	require.NoError(t, p.Contacts().AddTag(ctx, contact.ID, "vip"))
	require.NoError(t, p.Contacts().AddTag(ctx, contact.ID, "vip"))

	reloaded, err := p.Contacts().ByID(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"vip"}, reloaded.Tags)

	err = p.Contacts().AddTag(ctx, "missing", "vip")
	assert.ErrorIs(t, err, persistence.ErrContactNotFound)
}

func TestContactRepository_BySegment(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	_, err := p.Contacts().Upsert(ctx, store.ID, models.ContactPatch{
		Email:       "a@example.com",
		AddSegments: []string{"newsletter"},
	})
	require.NoError(t, err)

	_, err = p.Contacts().Upsert(ctx, store.ID, models.ContactPatch{Email: "b@example.com"})
	require.NoError(t, err)

	inSegment, err := p.Contacts().BySegment(ctx, store.ID, "newsletter")
	require.NoError(t, err)
	require.Len(t, inSegment, 1)
	assert.Equal(t, "a@example.com", inSegment[0].Email)

	all, err := p.Contacts().BySegment(ctx, store.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStoreRepository_ByDomain(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	found, err := p.Stores().ByDomain(ctx, "ACME.example.com")
	require.NoError(t, err)
	assert.Equal(t, store.ID, found.ID)
	assert.Equal(t, 21, found.QuietHours.StartHour)

	_, err = p.Stores().ByDomain(ctx, "unknown.example.com")
	assert.ErrorIs(t, err, persistence.ErrStoreNotFound)
}

func TestWorkflowRepository_ListActive(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	active := &models.Workflow{
		StoreID:     store.ID,
		Name:        "Welcome series",
		TriggerType: models.TriggerCustomerCreated,
		IsActive:    true,
		Actions: []models.Action{
			{Type: models.ActionSendEmail, Email: &models.EmailActionConfig{Subject: "Welcome", Body: "Hi"}},
		},
	}
	inactive := &models.Workflow{
		StoreID:     store.ID,
		Name:        "Paused series",
		TriggerType: models.TriggerCustomerCreated,
		IsActive:    false,
		Actions:     []models.Action{{Type: models.ActionAddTag, Tag: &models.TagActionConfig{Tag: "x"}}},
	}

	require.NoError(t, p.Workflows().Save(ctx, active))
	require.NoError(t, p.Workflows().Save(ctx, inactive))

	matches, err := p.Workflows().ListActive(ctx, store.ID, models.TriggerCustomerCreated)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, active.ID, matches[0].ID)
	require.Len(t, matches[0].Actions, 1)
	assert.Equal(t, models.ActionSendEmail, matches[0].Actions[0].Type)
}

func TestExecutionRepository_CreateIdempotencyConflict(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	key := models.IdempotencyKey("wf-1", "c-1", "evt-1")

	first := &models.Execution{
		IdempotencyKey: key,
		WorkflowID:     "wf-1",
		StoreID:        store.ID,
		ContactID:      "c-1",
		Status:         models.ExecutionPending,
	}
	require.NoError(t, p.Executions().Create(ctx, first))

	dup := &models.Execution{
		IdempotencyKey: key,
		WorkflowID:     "wf-1",
		StoreID:        store.ID,
		ContactID:      "c-1",
		Status:         models.ExecutionPending,
	}
	err := p.Executions().Create(ctx, dup)
	assert.ErrorIs(t, err, persistence.ErrExecutionExists)

	found, err := p.Executions().ByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestExecutionRepository_ClaimDue(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := &models.Execution{
		IdempotencyKey: models.IdempotencyKey("wf-1", "c-1", "e-1"),
		WorkflowID:     "wf-1",
		StoreID:        store.ID,
		ContactID:      "c-1",
		Status:         models.ExecutionWaiting,
		ResumeAt:       &past,
	}
	notDue := &models.Execution{
		IdempotencyKey: models.IdempotencyKey("wf-1", "c-2", "e-2"),
		WorkflowID:     "wf-1",
		StoreID:        store.ID,
		ContactID:      "c-2",
		Status:         models.ExecutionWaiting,
		ResumeAt:       &future,
	}

	require.NoError(t, p.Executions().Create(ctx, due))
	require.NoError(t, p.Executions().Create(ctx, notDue))

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

func TestExecutionRepository_SaveRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	workflow := &models.Workflow{
		ID:          "wf-1",
		StoreID:     store.ID,
		Name:        "Welcome series",
		TriggerType: models.TriggerCustomerCreated,
		Actions:     []models.Action{{Type: models.ActionAddTag, Tag: &models.TagActionConfig{Tag: "welcomed"}}},
	}

	execution := &models.Execution{
		IdempotencyKey: models.IdempotencyKey("wf-1", "c-1", "e-1"),
		WorkflowID:     "wf-1",
		StoreID:        store.ID,
		ContactID:      "c-1",
		Workflow:       workflow,
		TriggerEvent: models.TriggerEvent{
			ID:      "e-1",
			Type:    models.TriggerCustomerCreated,
			StoreID: store.ID,
			Data:    map[string]any{"total_price": 42.5},
		},
		Status: models.ExecutionPending,
	}
	require.NoError(t, p.Executions().Create(ctx, execution))

	execution.Status = models.ExecutionRunning
	execution.CurrentAction = 1
	execution.RecordResult(models.ActionResult{
		Index:      0,
		Type:       models.ActionAddTag,
		Success:    false,
		Error:      "boom",
		ExecutedAt: time.Now().UTC(),
	})
	require.NoError(t, p.Executions().Save(ctx, execution))

	reloaded, err := p.Executions().ByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, reloaded.Status)
	assert.Equal(t, 1, reloaded.CurrentAction)
	require.NotNil(t, reloaded.Workflow)
	assert.Equal(t, "Welcome series", reloaded.Workflow.Name)
	require.Len(t, reloaded.Results, 1)
	require.Len(t, reloaded.Errors, 1)
	assert.Equal(t, "boom", reloaded.Errors[0].Message)
}

func TestCheckoutRepository_MarkAbandonedFiresOnce(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	checkout := &models.Checkout{ID: "chk-1", StoreID: store.ID, Email: "a@b.com"}
	require.NoError(t, p.Checkouts().Upsert(ctx, checkout))

	first, err := p.Checkouts().MarkAbandoned(ctx, store.ID, "chk-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := p.Checkouts().MarkAbandoned(ctx, store.ID, "chk-1")
	require.NoError(t, err)
	assert.False(t, second, "the abandoned flag fires exactly once")

	// Later upserts never reset the flag.
	require.NoError(t, p.Checkouts().Upsert(ctx, &models.Checkout{ID: "chk-1", StoreID: store.ID}))

	reloaded, err := p.Checkouts().ByID(ctx, store.ID, "chk-1")
	require.NoError(t, err)
	assert.True(t, reloaded.Abandoned)

	_, err = p.Checkouts().MarkAbandoned(ctx, store.ID, "missing")
	assert.ErrorIs(t, err, persistence.ErrCheckoutNotFound)
}

func TestCampaignRepository_ListScheduled(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	store := createTestStore(ctx, t, p)

	scheduled := &models.Campaign{
		StoreID:  store.ID,
		Name:     "Summer sale",
		Channel:  models.ChannelEmail,
		Subject:  "Sale!",
		Body:     "Everything is cheaper",
		Schedule: "0 9 * * 1",
		Status:   models.CampaignScheduled,
	}
	draft := &models.Campaign{
		StoreID: store.ID,
		Name:    "Winter sale",
		Channel: models.ChannelEmail,
		Body:    "Draft body",
	}

	require.NoError(t, p.Campaigns().Save(ctx, scheduled))
	require.NoError(t, p.Campaigns().Save(ctx, draft))

	campaigns, err := p.Campaigns().ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, scheduled.ID, campaigns[0].ID)
	assert.Equal(t, models.CampaignDraft, draft.Status, "Save defaults an empty status to draft")
}
