package automation

import (
	"context"
	"log/slog"
	"time"

	"github.com/dripline/dripline/pkg/persistence"
)

const (
	// DefaultSweepInterval is how often due executions are polled. Delays are
	// minutes to days, so a minute of resume slack is acceptable.
	DefaultSweepInterval = 60 * time.Second

	// DefaultSweepBatch caps how many executions one sweep claims.
	DefaultSweepBatch = 100
)

// Sweeper resumes waiting executions whose resume time has passed. Claiming
// flips them to running atomically, so multiple worker processes can sweep
// the same database without double-advancing.
type Sweeper struct {
	persistence persistence.Persistence
	scheduler   *Scheduler
	logger      *slog.Logger
	interval    time.Duration
	batch       int
}

func NewSweeper(p persistence.Persistence, scheduler *Scheduler, logger *slog.Logger, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	return &Sweeper{
		persistence: p,
		scheduler:   scheduler,
		logger:      logger.With("module", "sweeper"),
		interval:    interval,
		batch:       batch,
	}
}

// Run polls until the context is cancelled. One pass runs immediately so
// restarts pick up overdue work without waiting a full interval.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep claims one batch of due executions and advances each concurrently.
func (s *Sweeper) Sweep(ctx context.Context) {
	claimed, err := s.persistence.Executions().ClaimDue(ctx, time.Now().UTC(), s.batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to claim due executions", "error", err)

		return
	}

	if len(claimed) == 0 {
		return
	}

	s.logger.InfoContext(ctx, "Resuming due executions", "count", len(claimed))

	for _, execution := range claimed {
		go func() {
			if err := s.scheduler.Advance(ctx, execution); err != nil {
				s.logger.ErrorContext(ctx, "Failed to advance execution",
					"execution_id", execution.ID, "error", err)
			}
		}()
	}
}
