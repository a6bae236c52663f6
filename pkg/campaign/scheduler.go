package campaign

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
)

// DefaultSyncInterval is how often the scheduler reconciles its cron
// entries against the scheduled campaigns in storage.
const DefaultSyncInterval = time.Minute

// Scheduler keeps one cron entry per scheduled campaign and fires the
// sender when an entry comes due. Each fired campaign runs in its own
// goroutine, so independent campaigns send in parallel.
type Scheduler struct {
	persistence persistence.Persistence
	sender      *Sender
	logger      *slog.Logger
	cron        *cron.Cron
	interval    time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
	wg      sync.WaitGroup
}

func NewScheduler(p persistence.Persistence, sender *Sender, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		persistence: p,
		sender:      sender,
		logger:      logger.With("module", "campaign_scheduler"),
		cron:        cron.New(),
		interval:    DefaultSyncInterval,
		entries:     make(map[string]cron.EntryID),
	}
}

// Run reconciles entries immediately and then on every sync tick until the
// context is cancelled. It blocks; callers run it in a goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sync(ctx)
	s.cron.Start()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-s.cron.Stop().Done()
			s.wg.Wait()

			return ctx.Err()
		case <-ticker.C:
			s.sync(ctx)
		}
	}
}

// sync makes the cron entry set match the scheduled campaigns in storage:
// new campaigns gain entries, sent or unscheduled ones lose theirs.
func (s *Scheduler) sync(ctx context.Context) {
	campaigns, err := s.persistence.Campaigns().ListScheduled(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list scheduled campaigns", "error", err)

		return
	}

	scheduled := make(map[string]*models.Campaign, len(campaigns))
	for _, campaign := range campaigns {
		if campaign.Schedule != "" {
			scheduled[campaign.ID] = campaign
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entries {
		if _, ok := scheduled[id]; !ok {
			s.cron.Remove(entryID)
			delete(s.entries, id)
		}
	}

	for id, campaign := range scheduled {
		if _, ok := s.entries[id]; ok {
			continue
		}

		entryID, err := s.cron.AddFunc(campaign.Schedule, s.fire(id))
		if err != nil {
			s.logger.ErrorContext(ctx, "Invalid campaign schedule",
				"campaign_id", id, "schedule", campaign.Schedule, "error", err)

			continue
		}

		s.entries[id] = entryID
		s.logger.InfoContext(ctx, "Campaign scheduled",
			"campaign_id", id, "schedule", campaign.Schedule)
	}
}

func (s *Scheduler) fire(campaignID string) func() {
	return func() {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			ctx := context.Background()

			// Reload so a campaign cancelled or already sent between sync and
			// fire never sends.
			campaign, err := s.persistence.Campaigns().ByID(ctx, campaignID)
			if err != nil {
				s.logger.ErrorContext(ctx, "Failed to load campaign", "campaign_id", campaignID, "error", err)

				return
			}

			if campaign.Status != models.CampaignScheduled {
				return
			}

			if err := s.sender.Send(ctx, campaign); err != nil {
				s.logger.ErrorContext(ctx, "Campaign send failed", "campaign_id", campaignID, "error", err)
			}
		}()
	}
}
