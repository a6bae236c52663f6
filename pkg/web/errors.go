package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dripline/dripline/pkg/ingestion"
	"github.com/dripline/dripline/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleIngestError maps normalizer failures onto problem responses. Unknown
// stores and invalid payloads are terminal: the upstream must not redeliver
// them, so they get 4xx rather than 5xx.
func handleIngestError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, persistence.ErrStoreNotFound):
		return notFound(c, "no store registered for this domain")

	case errors.Is(err, ingestion.ErrValidation):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_payload").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	default:
		return internalError(c, err)
	}
}
