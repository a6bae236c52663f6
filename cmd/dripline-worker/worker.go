package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dripline/dripline/pkg/automation"
	"github.com/dripline/dripline/pkg/campaign"
	"github.com/dripline/dripline/pkg/delivery"
	"github.com/dripline/dripline/pkg/eventbus"
	"github.com/dripline/dripline/pkg/events"
	"github.com/dripline/dripline/pkg/executors"
	"github.com/dripline/dripline/pkg/otelhelper"
	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/reliability"
	"github.com/dripline/dripline/pkg/template"
)

const (
	breakerThreshold = 5
	breakerRecovery  = time.Minute
	sweepBatch       = 100
)

// WorkerManager consumes trigger events from the bus and drives workflow
// executions, the delay sweeper and the campaign scheduler.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *automation.Engine
	sweeper     *automation.Sweeper
	campaigns   *campaign.Scheduler
	tracer      trace.Tracer
}

func NewWorkerManager(
	ctx context.Context,
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	email delivery.EmailChannel,
	sms delivery.SMSChannel,
	logger *slog.Logger,
	sweepInterval time.Duration,
) (*WorkerManager, error) {
	tracer, err := otelhelper.NewTracer(ctx, "dripline-worker")
	if err != nil {
		return nil, err
	}

	renderer := template.NewRenderer()
	retrier := reliability.NewRetrier(reliability.DefaultRetryConfig(), logger)
	breakers := reliability.NewBreakerSet(breakerThreshold, breakerRecovery, logger)

	dispatcher := executors.NewDispatcher(p.Contacts(), email, sms, renderer, retrier, breakers, logger)
	matcher := automation.NewMatcher(logger)
	scheduler := automation.NewScheduler(p, dispatcher, eventBus, logger, id)
	engine := automation.NewEngine(p, matcher, scheduler, logger)
	sweeper := automation.NewSweeper(p, scheduler, logger, sweepInterval, sweepBatch)

	sender := campaign.NewSender(p, email, sms, renderer, retrier, breakers, logger)
	campaigns := campaign.NewScheduler(p, sender, logger)

	return &WorkerManager{
		id:          id,
		logger:      logger.With("module", "worker"),
		persistence: p,
		eventBus:    eventBus,
		engine:      engine,
		sweeper:     sweeper,
		campaigns:   campaigns,
		tracer:      tracer,
	}, nil
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	if err := w.eventBus.Handle(events.TriggerReceivedEvent, w.handleTriggerReceived); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := w.sweeper.Run(runCtx); err != nil && runCtx.Err() == nil {
			w.logger.ErrorContext(runCtx, "Sweeper stopped", "error", err)
		}
	}()

	go func() {
		if err := w.campaigns.Run(runCtx); err != nil && runCtx.Err() == nil {
			w.logger.ErrorContext(runCtx, "Campaign scheduler stopped", "error", err)
		}
	}()

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

// handleTriggerReceived runs the matcher and scheduler for one trigger.
// Returning an error nacks the message; execution creation is idempotent,
// so redelivery never duplicates sends.
func (w *WorkerManager) handleTriggerReceived(ctx context.Context, event any) error {
	trigger, ok := event.(*events.TriggerReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TriggerReceived")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.handle_trigger",
		attribute.String(otelhelper.StoreIDKey, trigger.StoreID),
		attribute.String(otelhelper.EventIDKey, trigger.Event.ID),
		attribute.String(otelhelper.TriggerTypeKey, string(trigger.Event.Type)),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	logger := w.logger.With(
		"event_id", trigger.Event.ID,
		"trigger", string(trigger.Event.Type),
		"store_id", trigger.StoreID,
	)
	logger.InfoContext(ctx, "Processing trigger event")

	if err := w.engine.HandleTrigger(ctx, trigger.Event, trigger.ContactID); err != nil {
		logger.ErrorContext(ctx, "Failed to handle trigger", "error", err)
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.EventIDKey, trigger.Event.ID))

		return err
	}

	return nil
}
