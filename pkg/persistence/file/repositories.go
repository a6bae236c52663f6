package file

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// ContactRepository stores contacts in contacts.json.
type ContactRepository struct {
	p *Persistence
}

func (r *ContactRepository) Upsert(_ context.Context, storeID string, patch models.ContactPatch) (*models.Contact, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contacts, err := readCollection[models.Contact](r.p, "contacts")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	email := strings.ToLower(patch.Email)

	var contact *models.Contact

	for _, c := range contacts {
		if c.StoreID == storeID && strings.EqualFold(c.Email, email) {
			contact = c

			break
		}
	}

	if contact == nil {
		contact = &models.Contact{
			ID:        uuid.New().String(),
			StoreID:   storeID,
			Email:     email,
			CreatedAt: now,
		}
		contacts[contact.ID] = contact
	}

	patch.Apply(contact)
	contact.UpdatedAt = now

	if err := writeCollection(r.p, "contacts", contacts); err != nil {
		return nil, err
	}

	return contact, nil
}

func (r *ContactRepository) ByID(_ context.Context, id string) (*models.Contact, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contacts, err := readCollection[models.Contact](r.p, "contacts")
	if err != nil {
		return nil, err
	}

	contact, ok := contacts[id]
	if !ok {
		return nil, persistence.ErrContactNotFound
	}

	return contact, nil
}

func (r *ContactRepository) ByEmail(_ context.Context, storeID, email string) (*models.Contact, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contacts, err := readCollection[models.Contact](r.p, "contacts")
	if err != nil {
		return nil, err
	}

	for _, c := range contacts {
		if c.StoreID == storeID && strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}

	return nil, persistence.ErrContactNotFound
}

func (r *ContactRepository) BySegment(_ context.Context, storeID, segment string) ([]*models.Contact, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contacts, err := readCollection[models.Contact](r.p, "contacts")
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Contact, 0)

	for _, c := range contacts {
		if c.StoreID != storeID {
			continue
		}

		if segment == "" || slices.Contains(c.Segments, segment) {
			matches = append(matches, c)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Email < matches[j].Email })

	return matches, nil
}

func (r *ContactRepository) AddTag(_ context.Context, id, tag string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contacts, err := readCollection[models.Contact](r.p, "contacts")
	if err != nil {
		return err
	}

	contact, ok := contacts[id]
	if !ok {
		return persistence.ErrContactNotFound
	}

	if !contact.AddTag(tag) {
		return nil
	}

	contact.UpdatedAt = time.Now().UTC()

	return writeCollection(r.p, "contacts", contacts)
}

// StoreRepository stores merchant tenants in stores.json.
type StoreRepository struct {
	p *Persistence
}

func (r *StoreRepository) ByID(_ context.Context, id string) (*models.Store, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	stores, err := readCollection[models.Store](r.p, "stores")
	if err != nil {
		return nil, err
	}

	store, ok := stores[id]
	if !ok {
		return nil, persistence.ErrStoreNotFound
	}

	return store, nil
}

func (r *StoreRepository) ByDomain(_ context.Context, domain string) (*models.Store, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	stores, err := readCollection[models.Store](r.p, "stores")
	if err != nil {
		return nil, err
	}

	for _, s := range stores {
		if strings.EqualFold(s.Domain, domain) {
			return s, nil
		}
	}

	return nil, persistence.ErrStoreNotFound
}

func (r *StoreRepository) Save(_ context.Context, store *models.Store) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	stores, err := readCollection[models.Store](r.p, "stores")
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if store.ID == "" {
		store.ID = uuid.New().String()
		store.CreatedAt = now
	}

	store.UpdatedAt = now
	stores[store.ID] = store

	return writeCollection(r.p, "stores", stores)
}

// WorkflowRepository stores workflow definitions in workflows.json.
type WorkflowRepository struct {
	p *Persistence
}

func (r *WorkflowRepository) ListActive(_ context.Context, storeID string, triggerType models.TriggerType) ([]*models.Workflow, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	workflows, err := readCollection[models.Workflow](r.p, "workflows")
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, w := range workflows {
		if w.StoreID == storeID && w.IsActive && w.TriggerType == triggerType {
			matches = append(matches, w)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	return matches, nil
}

func (r *WorkflowRepository) ByID(_ context.Context, id string) (*models.Workflow, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	workflows, err := readCollection[models.Workflow](r.p, "workflows")
	if err != nil {
		return nil, err
	}

	workflow, ok := workflows[id]
	if !ok {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow, nil
}

func (r *WorkflowRepository) ByStore(_ context.Context, storeID string) ([]*models.Workflow, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	workflows, err := readCollection[models.Workflow](r.p, "workflows")
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Workflow, 0)

	for _, w := range workflows {
		if w.StoreID == storeID {
			matches = append(matches, w)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	return matches, nil
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	workflows, err := readCollection[models.Workflow](r.p, "workflows")
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now
	workflows[workflow.ID] = workflow

	return writeCollection(r.p, "workflows", workflows)
}

// ExecutionRepository stores execution state machines in executions.json.
type ExecutionRepository struct {
	p *Persistence
}

func (r *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	executions, err := readCollection[models.Execution](r.p, "executions")
	if err != nil {
		return err
	}

	for _, e := range executions {
		if e.IdempotencyKey == execution.IdempotencyKey {
			return persistence.ErrExecutionExists
		}
	}

	now := time.Now().UTC()

	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	execution.CreatedAt = now
	execution.UpdatedAt = now
	executions[execution.ID] = execution

	return writeCollection(r.p, "executions", executions)
}

func (r *ExecutionRepository) Save(_ context.Context, execution *models.Execution) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	executions, err := readCollection[models.Execution](r.p, "executions")
	if err != nil {
		return err
	}

	if _, ok := executions[execution.ID]; !ok {
		return persistence.ErrExecutionNotFound
	}

	execution.UpdatedAt = time.Now().UTC()
	executions[execution.ID] = execution

	return writeCollection(r.p, "executions", executions)
}

func (r *ExecutionRepository) ByID(_ context.Context, id string) (*models.Execution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	executions, err := readCollection[models.Execution](r.p, "executions")
	if err != nil {
		return nil, err
	}

	execution, ok := executions[id]
	if !ok {
		return nil, persistence.ErrExecutionNotFound
	}

	return execution, nil
}

func (r *ExecutionRepository) ByIdempotencyKey(_ context.Context, key string) (*models.Execution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	executions, err := readCollection[models.Execution](r.p, "executions")
	if err != nil {
		return nil, err
	}

	for _, e := range executions {
		if e.IdempotencyKey == key {
			return e, nil
		}
	}

	return nil, persistence.ErrExecutionNotFound
}

func (r *ExecutionRepository) ByStore(_ context.Context, storeID string, limit int) ([]*models.Execution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	executions, err := readCollection[models.Execution](r.p, "executions")
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Execution, 0)

	for _, e := range executions {
		if e.StoreID == storeID {
			matches = append(matches, e)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

func (r *ExecutionRepository) ClaimDue(_ context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	executions, err := readCollection[models.Execution](r.p, "executions")
	if err != nil {
		return nil, err
	}

	due := make([]*models.Execution, 0)

	for _, e := range executions {
		if e.Status == models.ExecutionWaiting && e.ResumeAt != nil && !e.ResumeAt.After(now) {
			due = append(due, e)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].ResumeAt.Before(*due[j].ResumeAt) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	for _, e := range due {
		e.Status = models.ExecutionRunning
		e.ResumeAt = nil
		e.UpdatedAt = now
	}

	if len(due) > 0 {
		if err := writeCollection(r.p, "executions", executions); err != nil {
			return nil, err
		}
	}

	return due, nil
}

// CheckoutRepository stores checkouts in checkouts.json, keyed by
// store-scoped id.
type CheckoutRepository struct {
	p *Persistence
}

func checkoutKey(storeID, id string) string {
	return storeID + "/" + id
}

func (r *CheckoutRepository) Upsert(_ context.Context, checkout *models.Checkout) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	checkouts, err := readCollection[models.Checkout](r.p, "checkouts")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	key := checkoutKey(checkout.StoreID, checkout.ID)

	if existing, ok := checkouts[key]; ok {
		// The abandoned flag never resets on later updates.
		checkout.Abandoned = checkout.Abandoned || existing.Abandoned
		checkout.CreatedAt = existing.CreatedAt
	} else if checkout.CreatedAt.IsZero() {
		checkout.CreatedAt = now
	}

	checkout.UpdatedAt = now
	checkouts[key] = checkout

	return writeCollection(r.p, "checkouts", checkouts)
}

func (r *CheckoutRepository) ByID(_ context.Context, storeID, id string) (*models.Checkout, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	checkouts, err := readCollection[models.Checkout](r.p, "checkouts")
	if err != nil {
		return nil, err
	}

	checkout, ok := checkouts[checkoutKey(storeID, id)]
	if !ok {
		return nil, persistence.ErrCheckoutNotFound
	}

	return checkout, nil
}

func (r *CheckoutRepository) MarkAbandoned(_ context.Context, storeID, id string) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	checkouts, err := readCollection[models.Checkout](r.p, "checkouts")
	if err != nil {
		return false, err
	}

	checkout, ok := checkouts[checkoutKey(storeID, id)]
	if !ok {
		return false, persistence.ErrCheckoutNotFound
	}

	if checkout.Abandoned {
		return false, nil
	}

	checkout.Abandoned = true
	checkout.UpdatedAt = time.Now().UTC()

	if err := writeCollection(r.p, "checkouts", checkouts); err != nil {
		return false, err
	}

	return true, nil
}

// CampaignRepository stores batch campaigns in campaigns.json.
type CampaignRepository struct {
	p *Persistence
}

func (r *CampaignRepository) Save(_ context.Context, campaign *models.Campaign) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	campaigns, err := readCollection[models.Campaign](r.p, "campaigns")
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
		campaign.CreatedAt = now
	}

	campaign.UpdatedAt = now
	campaigns[campaign.ID] = campaign

	return writeCollection(r.p, "campaigns", campaigns)
}

func (r *CampaignRepository) ByID(_ context.Context, id string) (*models.Campaign, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	campaigns, err := readCollection[models.Campaign](r.p, "campaigns")
	if err != nil {
		return nil, err
	}

	campaign, ok := campaigns[id]
	if !ok {
		return nil, persistence.ErrCampaignNotFound
	}

	return campaign, nil
}

func (r *CampaignRepository) ListScheduled(_ context.Context) ([]*models.Campaign, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	campaigns, err := readCollection[models.Campaign](r.p, "campaigns")
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Campaign, 0)

	for _, c := range campaigns {
		if c.Status == models.CampaignScheduled && c.Schedule != "" {
			matches = append(matches, c)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	return matches, nil
}
