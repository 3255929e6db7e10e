package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/caseflow/caseflow/pkg/engine"
	"github.com/caseflow/caseflow/pkg/expr"
	"github.com/caseflow/caseflow/pkg/forms"
	"github.com/caseflow/caseflow/pkg/persistence"
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

func conflict(c fiber.Ctx, errorType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(errorType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func unprocessable(c fiber.Ctx, errorType, detail string) error {
	problem := problems.NewStatusProblem(422).
		WithInstance(c.Path()).
		WithType(errorType).
		WithDetail(detail)

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps engine and persistence errors to RFC 7807
// problem responses.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		return conflict(c, "invalid_transition", err.Error())

	case errors.Is(err, engine.ErrUnresolvedChildCase):
		return conflict(c, "unresolved_child_case", err.Error())

	case errors.Is(err, persistence.ErrConflictingEdge):
		return conflict(c, "conflicting_edge", err.Error())

	case expr.IsEvaluationError(err):
		return unprocessable(c, "evaluation_error", err.Error())

	case errors.Is(err, engine.ErrWorkflowNotStartable):
		return unprocessable(c, "workflow_not_startable", err.Error())

	case errors.Is(err, engine.ErrFormNotAllowed):
		return unprocessable(c, "form_not_allowed", err.Error())

	case errors.Is(err, engine.ErrNotMultipleInstance):
		return unprocessable(c, "not_multiple_instance", err.Error())

	case errors.Is(err, forms.ErrDocumentInvalid):
		return unprocessable(c, "document_invalid", err.Error())

	case errors.Is(err, engine.ErrNotAuthorized):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("not_authorized").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	default:
		return internalError(c, err)
	}
}
