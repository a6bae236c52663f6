package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// CheckoutRepository implements persistence.CheckoutRepository on PostgreSQL.
type CheckoutRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const checkoutColumns = `id, store_id, email, data, abandoned, completed_at, created_at, updated_at`

// Upsert writes the latest checkout snapshot. The abandoned flag and original
// created_at survive updates; a checkout marked abandoned stays marked.
func (r *CheckoutRepository) Upsert(ctx context.Context, checkout *models.Checkout) error {
	now := time.Now().UTC()

	if checkout.CreatedAt.IsZero() {
		checkout.CreatedAt = now
	}

	checkout.UpdatedAt = now

	data, err := marshalJSONB(checkout.Data, "{}")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO checkouts (`+checkoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (store_id, id) DO UPDATE SET
			email = EXCLUDED.email,
			data = EXCLUDED.data,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`, checkout.ID, checkout.StoreID, checkout.Email, data, checkout.Abandoned,
		checkout.CompletedAt, checkout.CreatedAt, checkout.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert checkout: %w", err)
	}

	return nil
}

func (r *CheckoutRepository) ByID(ctx context.Context, storeID, id string) (*models.Checkout, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+checkoutColumns+` FROM checkouts WHERE store_id = $1 AND id = $2
	`, storeID, id)

	checkout, err := scanCheckout(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrCheckoutNotFound
	}

	return checkout, err
}

// MarkAbandoned sets the fired-once flag and reports whether this call was
// the one that set it.
func (r *CheckoutRepository) MarkAbandoned(ctx context.Context, storeID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE checkouts
		SET abandoned = TRUE, updated_at = NOW()
		WHERE store_id = $1 AND id = $2 AND abandoned = FALSE
	`, storeID, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark checkout abandoned: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check abandoned update result: %w", err)
	}

	if affected > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM checkouts WHERE store_id = $1 AND id = $2)", storeID, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check checkout existence: %w", err)
	}

	if !exists {
		return false, persistence.ErrCheckoutNotFound
	}

	return false, nil
}

func scanCheckout(row rowScanner) (*models.Checkout, error) {
	var (
		checkout models.Checkout
		data     []byte
	)

	err := row.Scan(&checkout.ID, &checkout.StoreID, &checkout.Email, &data,
		&checkout.Abandoned, &checkout.CompletedAt, &checkout.CreatedAt, &checkout.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan checkout row: %w", err)
	}

	if err := unmarshalJSONB(data, &checkout.Data); err != nil {
		return nil, err
	}

	return &checkout, nil
}
