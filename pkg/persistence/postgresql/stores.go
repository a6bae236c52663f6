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

// StoreRepository implements persistence.StoreRepository on PostgreSQL.
type StoreRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const storeColumns = `id, name, domain, timezone, quiet_hours, active, created_at, updated_at`

func (r *StoreRepository) ByID(ctx context.Context, id string) (*models.Store, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+storeColumns+` FROM stores WHERE id = $1
	`, id)

	store, err := scanStore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrStoreNotFound
	}

	return store, err
}

func (r *StoreRepository) ByDomain(ctx context.Context, domain string) (*models.Store, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+storeColumns+` FROM stores WHERE LOWER(domain) = LOWER($1)
	`, domain)

	store, err := scanStore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrStoreNotFound
	}

	return store, err
}

func (r *StoreRepository) Save(ctx context.Context, store *models.Store) error {
	now := time.Now().UTC()

	if store.ID == "" {
		store.ID = uuid.NewString()
		store.CreatedAt = now
	}

	store.UpdatedAt = now

	quietHours, err := marshalJSONB(store.QuietHours, "{}")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO stores (`+storeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			domain = EXCLUDED.domain,
			timezone = EXCLUDED.timezone,
			quiet_hours = EXCLUDED.quiet_hours,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`, store.ID, store.Name, store.Domain, store.Timezone, quietHours,
		store.Active, store.CreatedAt, store.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}

	return nil
}

func scanStore(row rowScanner) (*models.Store, error) {
	var (
		store      models.Store
		quietHours []byte
	)

	err := row.Scan(&store.ID, &store.Name, &store.Domain, &store.Timezone,
		&quietHours, &store.Active, &store.CreatedAt, &store.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan store row: %w", err)
	}

	if err := unmarshalJSONB(quietHours, &store.QuietHours); err != nil {
		return nil, err
	}

	return &store, nil
}
