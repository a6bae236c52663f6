package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dripline/dripline/pkg/cmd"
	"github.com/dripline/dripline/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "dripline-worker",
		EnableShellCompletion: true,
		Usage:                 "Execute workflows and campaigns from trigger events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
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
				Name:    "aws-region",
				Usage:   "AWS region for SES",
				Value:   "us-east-1",
				Sources: cli.EnvVars("AWS_REGION"),
			},
			&cli.StringFlag{
				Name:    "aws-access-key",
				Usage:   "AWS access key ID for SES",
				Sources: cli.EnvVars("AWS_ACCESS_KEY_ID"),
			},
			&cli.StringFlag{
				Name:    "aws-secret-key",
				Usage:   "AWS secret access key for SES",
				Sources: cli.EnvVars("AWS_SECRET_ACCESS_KEY"),
			},
			&cli.StringFlag{
				Name:     "email-from",
				Usage:    "Verified SES sender address",
				Required: true,
				Sources:  cli.EnvVars("EMAIL_FROM"),
			},
			&cli.StringFlag{
				Name:    "sms-gateway-url",
				Usage:   "HTTP SMS gateway endpoint (empty disables SMS sending)",
				Sources: cli.EnvVars("SMS_GATEWAY_URL"),
			},
			&cli.StringFlag{
				Name:    "sms-gateway-token",
				Usage:   "Bearer token for the SMS gateway",
				Sources: cli.EnvVars("SMS_GATEWAY_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "sms-from",
				Usage:   "Sender number or ID for outgoing SMS",
				Sources: cli.EnvVars("SMS_FROM"),
			},
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Usage:   "How often to resume executions whose delay has elapsed",
				Value:   time.Minute,
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("dripline-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing worker")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			email, err := cmd.NewEmailChannel(ctx,
				command.String("aws-region"),
				command.String("aws-access-key"),
				command.String("aws-secret-key"),
				command.String("email-from"),
			)
			if err != nil {
				return err
			}

			sms := cmd.NewSMSChannel(
				command.String("sms-gateway-url"),
				command.String("sms-gateway-token"),
				command.String("sms-from"),
			)

			worker, err := NewWorkerManager(ctx, workerID, persistence, eventBus, email, sms, logger, command.Duration("sweep-interval"))
			if err != nil {
				return err
			}

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
