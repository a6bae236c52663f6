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

// ExecutionRepository implements persistence.ExecutionRepository on PostgreSQL.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const executionColumns = `id, idempotency_key, workflow_id, store_id, contact_id,
	workflow_snapshot, trigger_event, current_action, status, resume_at,
	results, errors, created_at, updated_at, completed_at`

// Create inserts a new execution. The idempotency-key unique index turns a
// redelivered trigger into persistence.ErrExecutionExists instead of a
// second run.
func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	now := time.Now().UTC()

	if execution.ID == "" {
		execution.ID = uuid.NewString()
	}

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	args, err := executionArgs(execution)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO executions (`+executionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check execution insert result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrExecutionExists
	}

	return nil
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	execution.UpdatedAt = time.Now().UTC()

	snapshot, err := marshalJSONB(execution.Workflow, "{}")
	if err != nil {
		return err
	}

	results, err := marshalJSONB(execution.Results, "[]")
	if err != nil {
		return err
	}

	executionErrors, err := marshalJSONB(execution.Errors, "[]")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE executions
		SET workflow_snapshot = $2, current_action = $3, status = $4, resume_at = $5,
			results = $6, errors = $7, updated_at = $8, completed_at = $9
		WHERE id = $1
	`, execution.ID, snapshot, execution.CurrentAction, string(execution.Status),
		execution.ResumeAt, results, executionErrors, execution.UpdatedAt, execution.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+executionColumns+` FROM executions WHERE id = $1
	`, id)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrExecutionNotFound
	}

	return execution, err
}

func (r *ExecutionRepository) ByIdempotencyKey(ctx context.Context, key string) (*models.Execution, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+executionColumns+` FROM executions WHERE idempotency_key = $1
	`, key)

	execution, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrExecutionNotFound
	}

	return execution, err
}

func (r *ExecutionRepository) ByStore(ctx context.Context, storeID string, limit int) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE store_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions by store: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

// ClaimDue atomically flips due waiting executions to running and returns
// them. SKIP LOCKED keeps concurrent sweepers from double-claiming rows.
func (r *ExecutionRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE executions
		SET status = $3, resume_at = NULL, updated_at = $1
		WHERE id IN (
			SELECT id FROM executions
			WHERE status = $4 AND resume_at <= $1
			ORDER BY resume_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+executionColumns+`
	`, now, limit, string(models.ExecutionRunning), string(models.ExecutionWaiting))
	if err != nil {
		return nil, fmt.Errorf("failed to claim due executions: %w", err)
	}
	defer rows.Close()

	return collectExecutions(rows)
}

func executionArgs(execution *models.Execution) ([]any, error) {
	snapshot, err := marshalJSONB(execution.Workflow, "{}")
	if err != nil {
		return nil, err
	}

	triggerEvent, err := marshalJSONB(execution.TriggerEvent, "{}")
	if err != nil {
		return nil, err
	}

	results, err := marshalJSONB(execution.Results, "[]")
	if err != nil {
		return nil, err
	}

	executionErrors, err := marshalJSONB(execution.Errors, "[]")
	if err != nil {
		return nil, err
	}

	return []any{
		execution.ID, execution.IdempotencyKey, execution.WorkflowID, execution.StoreID,
		execution.ContactID, snapshot, triggerEvent, execution.CurrentAction,
		string(execution.Status), execution.ResumeAt, results, executionErrors,
		execution.CreatedAt, execution.UpdatedAt, execution.CompletedAt,
	}, nil
}

func collectExecutions(rows *sql.Rows) ([]*models.Execution, error) {
	var executions []*models.Execution

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, rows.Err()
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution       models.Execution
		status          string
		snapshot        []byte
		triggerEvent    []byte
		results         []byte
		executionErrors []byte
	)

	err := row.Scan(&execution.ID, &execution.IdempotencyKey, &execution.WorkflowID,
		&execution.StoreID, &execution.ContactID, &snapshot, &triggerEvent,
		&execution.CurrentAction, &status, &execution.ResumeAt, &results,
		&executionErrors, &execution.CreatedAt, &execution.UpdatedAt, &execution.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan execution row: %w", err)
	}

	execution.Status = models.ExecutionStatus(status)

	if err := unmarshalJSONB(snapshot, &execution.Workflow); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(triggerEvent, &execution.TriggerEvent); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(results, &execution.Results); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(executionErrors, &execution.Errors); err != nil {
		return nil, err
	}

	return &execution, nil
}
