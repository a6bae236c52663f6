// Package file provides file-based persistence for development and tests.
// Each repository stores newline-separated JSON documents per entity under
// the configured root directory.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/dripline/dripline/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local filesystem.
// A single mutex guards all repositories; this implementation targets
// single-process development, not production concurrency.
type Persistence struct {
	root string
	mu   sync.Mutex

	contacts   *ContactRepository
	stores     *StoreRepository
	workflows  *WorkflowRepository
	executions *ExecutionRepository
	checkouts  *CheckoutRepository
	campaigns  *CampaignRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix is stripped for symmetry with database URLs.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.TrimPrefix(root, "file://")

	if err := os.MkdirAll(cleanRoot, 0o755); err != nil {
		return nil, err
	}

	p := &Persistence{root: cleanRoot}
	p.contacts = &ContactRepository{p: p}
	p.stores = &StoreRepository{p: p}
	p.workflows = &WorkflowRepository{p: p}
	p.executions = &ExecutionRepository{p: p}
	p.checkouts = &CheckoutRepository{p: p}
	p.campaigns = &CampaignRepository{p: p}

	return p, nil
}

func (p *Persistence) Contacts() persistence.ContactRepository { return p.contacts }

func (p *Persistence) Stores() persistence.StoreRepository { return p.stores }

func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflows }

func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }

func (p *Persistence) Checkouts() persistence.CheckoutRepository { return p.checkouts }

func (p *Persistence) Campaigns() persistence.CampaignRepository { return p.campaigns }

// HealthCheck verifies the root directory still exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return err
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
