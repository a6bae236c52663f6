package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dripline/dripline/pkg/cmd"
	"github.com/dripline/dripline/pkg/dedupe"
	"github.com/dripline/dripline/pkg/ingestion"
	"github.com/dripline/dripline/pkg/log"
)

const defaultPort = 9090

func main() {
	command := &cli.Command{
		Name:                  "dripline-ingest",
		EnableShellCompletion: true,
		Usage:                 "Receive commerce webhooks and publish trigger events",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the webhook server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker addresses",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for event dedupe (empty uses in-process dedupe)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "dedupe-retention",
				Usage:   "How long delivered event IDs are remembered",
				Value:   dedupe.DefaultRetention,
				Sources: cli.EnvVars("DEDUPE_RETENTION"),
			},
			&cli.DurationFlag{
				Name:    "abandon-threshold",
				Usage:   "Idle time before an open checkout counts as abandoned",
				Value:   ingestion.DefaultAbandonThreshold,
				Sources: cli.EnvVars("ABANDON_THRESHOLD"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("dripline-ingest")

			logger.InfoContext(ctx, "Initializing ingest service")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "ingest", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			deduper, err := cmd.NewDeduper(ctx, command.String("redis-url"), command.Duration("dedupe-retention"))
			if err != nil {
				return err
			}

			defer func() {
				if err := deduper.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close deduper", "error", err)
				}
			}()

			server := NewServer(logger, persistence, deduper, eventBus, command.Duration("abandon-threshold"))

			return server.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
