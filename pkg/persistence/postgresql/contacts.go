package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// ContactRepository implements persistence.ContactRepository on PostgreSQL.
type ContactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const contactColumns = `id, store_id, email, first_name, last_name, phone,
	email_consent, sms_consent, total_spent, order_count, tags, segments,
	last_order_at, created_at, updated_at`

// Upsert applies partial-update semantics inside a transaction. The existing
// row is locked, patched in memory and written back, so concurrent upserts
// for the same contact never lose fields.
func (r *ContactRepository) Upsert(ctx context.Context, storeID string, patch models.ContactPatch) (*models.Contact, error) {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin contact upsert transaction: %w", err)
	}
	defer func() { _ = transaction.Rollback() }()

	row := transaction.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE store_id = $1 AND LOWER(email) = LOWER($2)
		FOR UPDATE
	`, storeID, patch.Email)

	contact, err := scanContact(row)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC()
		contact = &models.Contact{
			ID:        uuid.NewString(),
			StoreID:   storeID,
			Email:     strings.ToLower(patch.Email),
			CreatedAt: now,
			UpdatedAt: now,
		}
		patch.Apply(contact)

		if err := r.insert(ctx, transaction, contact); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		patch.Apply(contact)
		contact.UpdatedAt = time.Now().UTC()

		if err := r.update(ctx, transaction, contact); err != nil {
			return nil, err
		}
	}

	if err := transaction.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit contact upsert: %w", err)
	}

	return contact, nil
}

func (r *ContactRepository) ByID(ctx context.Context, id string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+` FROM contacts WHERE id = $1
	`, id)

	contact, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrContactNotFound
	}

	return contact, err
}

func (r *ContactRepository) ByEmail(ctx context.Context, storeID, email string) (*models.Contact, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE store_id = $1 AND LOWER(email) = LOWER($2)
	`, storeID, email)

	contact, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrContactNotFound
	}

	return contact, err
}

// BySegment lists a store's contacts in a segment. An empty segment returns
// every contact of the store.
func (r *ContactRepository) BySegment(ctx context.Context, storeID, segment string) ([]*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE store_id = $1`
	args := []any{storeID}

	if segment != "" {
		query += ` AND segments @> $2`

		segmentJSON, err := marshalJSONB([]string{segment}, "[]")
		if err != nil {
			return nil, err
		}

		args = append(args, segmentJSON)
	}

	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts by segment: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact

	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}

		contacts = append(contacts, contact)
	}

	return contacts, rows.Err()
}

// AddTag is an idempotent set-insert on the contact's JSONB tag list.
func (r *ContactRepository) AddTag(ctx context.Context, id, tag string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET tags = tags || to_jsonb($2::text), updated_at = NOW()
		WHERE id = $1 AND NOT tags @> to_jsonb(ARRAY[$2::text])
	`, id, tag)
	if err != nil {
		return fmt.Errorf("failed to add tag to contact: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check tag update result: %w", err)
	}

	if affected > 0 {
		return nil
	}

	// Either the contact already has the tag or it does not exist.
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM contacts WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check contact existence: %w", err)
	}

	if !exists {
		return persistence.ErrContactNotFound
	}

	return nil
}

func (r *ContactRepository) insert(ctx context.Context, tx *sql.Tx, contact *models.Contact) error {
	tags, err := marshalJSONB(contact.Tags, "[]")
	if err != nil {
		return err
	}

	segments, err := marshalJSONB(contact.Segments, "[]")
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, contact.ID, contact.StoreID, contact.Email, contact.FirstName, contact.LastName,
		contact.Phone, contact.EmailConsent, contact.SMSConsent, contact.TotalSpent,
		contact.OrderCount, tags, segments, contact.LastOrderAt, contact.CreatedAt, contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}

	return nil
}

func (r *ContactRepository) update(ctx context.Context, tx *sql.Tx, contact *models.Contact) error {
	tags, err := marshalJSONB(contact.Tags, "[]")
	if err != nil {
		return err
	}

	segments, err := marshalJSONB(contact.Segments, "[]")
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE contacts
		SET first_name = $2, last_name = $3, phone = $4, email_consent = $5,
			sms_consent = $6, total_spent = $7, order_count = $8, tags = $9,
			segments = $10, last_order_at = $11, updated_at = $12
		WHERE id = $1
	`, contact.ID, contact.FirstName, contact.LastName, contact.Phone,
		contact.EmailConsent, contact.SMSConsent, contact.TotalSpent, contact.OrderCount,
		tags, segments, contact.LastOrderAt, contact.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		contact  models.Contact
		tags     []byte
		segments []byte
	)

	err := row.Scan(&contact.ID, &contact.StoreID, &contact.Email, &contact.FirstName,
		&contact.LastName, &contact.Phone, &contact.EmailConsent, &contact.SMSConsent,
		&contact.TotalSpent, &contact.OrderCount, &tags, &segments,
		&contact.LastOrderAt, &contact.CreatedAt, &contact.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan contact row: %w", err)
	}

	if err := unmarshalJSONB(tags, &contact.Tags); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(segments, &contact.Segments); err != nil {
		return nil, err
	}

	return &contact, nil
}
