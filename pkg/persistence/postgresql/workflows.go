package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// WorkflowRepository implements persistence.WorkflowRepository on PostgreSQL.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const workflowColumns = `id, store_id, name, trigger_type, trigger_config, actions, is_active, created_at, updated_at`

func (r *WorkflowRepository) ListActive(ctx context.Context, storeID string, triggerType models.TriggerType) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+workflowColumns+`
		FROM workflows
		WHERE store_id = $1 AND trigger_type = $2 AND is_active = TRUE
		ORDER BY created_at
	`, storeID, string(triggerType))
	if err != nil {
		return nil, fmt.Errorf("failed to query active workflows: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

func (r *WorkflowRepository) ByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+workflowColumns+` FROM workflows WHERE id = $1
	`, id)

	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow, err
}

func (r *WorkflowRepository) ByStore(ctx context.Context, storeID string) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+workflowColumns+` FROM workflows WHERE store_id = $1 ORDER BY created_at
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows by store: %w", err)
	}
	defer rows.Close()

	return collectWorkflows(rows)
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.ID == "" {
		workflow.ID = uuid.NewString()
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	triggerConfig, err := marshalJSONB(workflow.Trigger, "{}")
	if err != nil {
		return err
	}

	actions, err := marshalJSONB(workflow.Actions, "[]")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflows (`+workflowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			trigger_type = EXCLUDED.trigger_type,
			trigger_config = EXCLUDED.trigger_config,
			actions = EXCLUDED.actions,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, workflow.ID, workflow.StoreID, workflow.Name, string(workflow.TriggerType),
		triggerConfig, actions, workflow.IsActive, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func collectWorkflows(rows *sql.Rows) ([]*models.Workflow, error) {
	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, rows.Err()
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow      models.Workflow
		triggerType   string
		triggerConfig []byte
		actions       []byte
	)

	err := row.Scan(&workflow.ID, &workflow.StoreID, &workflow.Name, &triggerType,
		&triggerConfig, &actions, &workflow.IsActive, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan workflow row: %w", err)
	}

	workflow.TriggerType = models.TriggerType(triggerType)

	if err := unmarshalJSONB(triggerConfig, &workflow.Trigger); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(actions, &workflow.Actions); err != nil {
		return nil, err
	}

	return &workflow, nil
}
