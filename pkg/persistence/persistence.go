// Package persistence provides the data storage abstraction for contacts,
// stores, workflow definitions, executions, checkouts and campaigns.
package persistence

import (
	"context"
	"time"

	"github.com/dripline/dripline/pkg/models"
)

// ContactRepository stores contacts keyed by (store_id, email).
type ContactRepository interface {
	// Upsert applies partial-update semantics: patch fields that are nil
	// leave stored values untouched. The write is durable before return.
	Upsert(ctx context.Context, storeID string, patch models.ContactPatch) (*models.Contact, error)
	ByID(ctx context.Context, id string) (*models.Contact, error)
	ByEmail(ctx context.Context, storeID, email string) (*models.Contact, error)
	// BySegment lists a store's contacts in a segment; an empty segment
	// returns all contacts of the store.
	BySegment(ctx context.Context, storeID, segment string) ([]*models.Contact, error)
	// AddTag is an idempotent set-insert on the contact's tag list.
	AddTag(ctx context.Context, id, tag string) error
}

// StoreRepository resolves merchant tenants.
type StoreRepository interface {
	ByID(ctx context.Context, id string) (*models.Store, error)
	ByDomain(ctx context.Context, domain string) (*models.Store, error)
	Save(ctx context.Context, store *models.Store) error
}

// WorkflowRepository reads merchant-authored workflow definitions. Writes
// originate from the builder UI; Save exists for provisioning and tests.
type WorkflowRepository interface {
	ListActive(ctx context.Context, storeID string, triggerType models.TriggerType) ([]*models.Workflow, error)
	ByID(ctx context.Context, id string) (*models.Workflow, error)
	ByStore(ctx context.Context, storeID string) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
}

// ExecutionRepository persists execution state machines. Create enforces the
// idempotency-key unique constraint; ClaimDue hands out waiting executions
// whose resume time has passed, flipping them to running so concurrent
// sweepers never double-claim.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	Save(ctx context.Context, execution *models.Execution) error
	ByID(ctx context.Context, id string) (*models.Execution, error)
	ByIdempotencyKey(ctx context.Context, key string) (*models.Execution, error)
	ByStore(ctx context.Context, storeID string, limit int) ([]*models.Execution, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error)
}

// CheckoutRepository tracks checkouts for abandoned-cart detection.
type CheckoutRepository interface {
	Upsert(ctx context.Context, checkout *models.Checkout) error
	ByID(ctx context.Context, storeID, id string) (*models.Checkout, error)
	// MarkAbandoned sets the fired-once flag; it reports false when the
	// checkout was already marked, so callers never re-fire the event.
	MarkAbandoned(ctx context.Context, storeID, id string) (bool, error)
}

// CampaignRepository stores one-off batch campaigns.
type CampaignRepository interface {
	Save(ctx context.Context, campaign *models.Campaign) error
	ByID(ctx context.Context, id string) (*models.Campaign, error)
	ListScheduled(ctx context.Context) ([]*models.Campaign, error)
}

// Persistence aggregates the repositories behind one connection lifecycle.
type Persistence interface {
	Contacts() ContactRepository
	Stores() StoreRepository
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	Checkouts() CheckoutRepository
	Campaigns() CampaignRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
