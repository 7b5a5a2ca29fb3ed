package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/workflow"
)

// busyProblem carries the admission state with the 429 problem.
type busyProblem struct {
	*problems.Problem

	Active int `json:"active"`
	Max    int `json:"max"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

// handleError maps domain and persistence errors to problem responses.
func handleError(c fiber.Ctx, err error) error {
	status, kind := fiber.StatusInternalServerError, "internal_error"

	switch {
	case workflow.IsBusy(err):
		return tooManyRuns(c, err)
	case models.IsValidation(err):
		status, kind = fiber.StatusBadRequest, "validation_error"
	case persistence.IsWorkflowNotFound(err):
		status, kind = fiber.StatusNotFound, "workflow_not_found"
	case persistence.IsExecutionNotFound(err):
		status, kind = fiber.StatusNotFound, "run_not_found"
	case models.IsNotFound(err):
		status, kind = fiber.StatusNotFound, "not_found"
	case models.IsDuplicate(err):
		status, kind = fiber.StatusConflict, "conflict"
	case models.IsInvariantViolation(err), models.IsInvalidTransition(err):
		status, kind = fiber.StatusUnprocessableEntity, "invariant_violation"
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind)

	if status == fiber.StatusInternalServerError {
		problem = problem.WithError(err)
	} else {
		problem = problem.WithDetail(err.Error())
	}

	return c.Status(status).JSON(problem)
}

func tooManyRuns(c fiber.Ctx, err error) error {
	problem := busyProblem{
		Problem: problems.NewStatusProblem(fiber.StatusTooManyRequests).
			WithInstance(c.Path()).
			WithType("runner_busy").
			WithDetail(err.Error()),
	}

	var domainErr *models.DomainError
	if errors.As(err, &domainErr) {
		problem.Active, _ = domainErr.Metadata["active"].(int)
		problem.Max, _ = domainErr.Metadata["max"].(int)
	}

	return c.Status(fiber.StatusTooManyRequests).JSON(problem)
}
