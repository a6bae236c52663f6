// Package main provides the webhook ingest server.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/dripline/dripline/pkg/dedupe"
	"github.com/dripline/dripline/pkg/eventbus"
	"github.com/dripline/dripline/pkg/ingestion"
	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/web"
)

type Server struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	deduper     dedupe.Deduper
	eventBus    eventbus.EventBus
	threshold   time.Duration
}

func NewServer(
	logger *slog.Logger,
	p persistence.Persistence,
	deduper dedupe.Deduper,
	eventBus eventbus.EventBus,
	abandonThreshold time.Duration,
) *Server {
	return &Server{
		logger:      logger,
		persistence: p,
		deduper:     deduper,
		eventBus:    eventBus,
		threshold:   abandonThreshold,
	}
}

func (s *Server) App() *fiber.App {
	normalizer := ingestion.NewNormalizer(s.persistence, s.deduper, s.logger, s.threshold)
	handlers := web.NewIngestHandlers(normalizer, s.eventBus, s.logger)

	app := fiber.New()
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Dripline Ingest")
	})

	app.Post("/webhooks", handlers.HandleWebhook)

	return app
}

func (s *Server) Start(port int) error {
	return s.App().Listen(":" + strconv.Itoa(port))
}
