// Package postgresql provides the production persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	contacts   *ContactRepository
	stores     *StoreRepository
	workflows  *WorkflowRepository
	executions *ExecutionRepository
	checkouts  *CheckoutRepository
	campaigns  *CampaignRepository
}

// NewPersistence connects, runs migrations and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	p := &Persistence{
		db:     database,
		logger: logger.With("module", "postgres_persistence"),
	}
	p.contacts = &ContactRepository{db: database, logger: p.logger}
	p.stores = &StoreRepository{db: database, logger: p.logger}
	p.workflows = &WorkflowRepository{db: database, logger: p.logger}
	p.executions = &ExecutionRepository{db: database, logger: p.logger}
	p.checkouts = &CheckoutRepository{db: database, logger: p.logger}
	p.campaigns = &CampaignRepository{db: database, logger: p.logger}

	return p, nil
}

func (p *Persistence) Contacts() persistence.ContactRepository { return p.contacts }

func (p *Persistence) Stores() persistence.StoreRepository { return p.stores }

func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflows }

func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executions }

func (p *Persistence) Checkouts() persistence.CheckoutRepository { return p.checkouts }

func (p *Persistence) Campaigns() persistence.CampaignRepository { return p.campaigns }

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
