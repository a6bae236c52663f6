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

// CampaignRepository implements persistence.CampaignRepository on PostgreSQL.
type CampaignRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const campaignColumns = `id, store_id, name, channel, segment, subject, body, schedule, status, sent_count, created_at, updated_at`

func (r *CampaignRepository) Save(ctx context.Context, campaign *models.Campaign) error {
	now := time.Now().UTC()

	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
		campaign.CreatedAt = now
	}

	if campaign.Status == "" {
		campaign.Status = models.CampaignDraft
	}

	campaign.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (`+campaignColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			channel = EXCLUDED.channel,
			segment = EXCLUDED.segment,
			subject = EXCLUDED.subject,
			body = EXCLUDED.body,
			schedule = EXCLUDED.schedule,
			status = EXCLUDED.status,
			sent_count = EXCLUDED.sent_count,
			updated_at = EXCLUDED.updated_at
	`, campaign.ID, campaign.StoreID, campaign.Name, string(campaign.Channel),
		campaign.Segment, campaign.Subject, campaign.Body, campaign.Schedule,
		string(campaign.Status), campaign.SentCount, campaign.CreatedAt, campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}

	return nil
}

func (r *CampaignRepository) ByID(ctx context.Context, id string) (*models.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE id = $1
	`, id)

	campaign, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrCampaignNotFound
	}

	return campaign, err
}

func (r *CampaignRepository) ListScheduled(ctx context.Context) ([]*models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE status = $1 ORDER BY created_at
	`, string(models.CampaignScheduled))
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.Campaign

	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}

		campaigns = append(campaigns, campaign)
	}

	return campaigns, rows.Err()
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	var (
		campaign models.Campaign
		channel  string
		status   string
	)

	err := row.Scan(&campaign.ID, &campaign.StoreID, &campaign.Name, &channel,
		&campaign.Segment, &campaign.Subject, &campaign.Body, &campaign.Schedule,
		&status, &campaign.SentCount, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan campaign row: %w", err)
	}

	campaign.Channel = models.Channel(channel)
	campaign.Status = models.CampaignStatus(status)

	return &campaign, nil
}
