// Package web provides the HTTP surface for admitting runs and reading workflows and execution ledgers.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/dukex/stepflow/pkg/definition"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/dukex/stepflow/pkg/workflow"
)

// RunAdmitter admits runs under a concurrency ceiling.
type RunAdmitter interface {
	Enqueue(ctx context.Context, req workflow.RunRequest) error
	Metrics() workflow.RunMetrics
}

type APIHandlers struct {
	runs       RunAdmitter
	executions *workflow.ExecutionService
	repository *workflow.Repository
	loader     *definition.Loader
	validator  *validator.Validate
	registry   *registry.Registry
	logger     *slog.Logger
}

func NewAPIHandlers(
	runs RunAdmitter,
	executions *workflow.ExecutionService,
	repository *workflow.Repository,
	validator *validator.Validate,
	registry *registry.Registry,
	logger *slog.Logger,
) *APIHandlers {
	loader := definition.NewLoader(nil)
	if registry != nil {
		loader = definition.NewLoader(registry)
	}

	return &APIHandlers{
		runs:       runs,
		executions: executions,
		repository: repository,
		loader:     loader,
		validator:  validator,
		registry:   registry,
		logger:     log.OrNop(logger),
	}
}

// CreateRun admits a run and answers 202 with its id. The run continues after the request ends.
func (h *APIHandlers) CreateRun(c fiber.Ctx) error {
	var req CreateRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = uuid.New().String()
	}

	err := h.runs.Enqueue(c.Context(), workflow.RunRequest{RunID: runID, Workflow: req.Workflow})
	if err != nil {
		h.logger.WarnContext(c.Context(), "run refused", "run_id", runID, "error", err)

		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(CreateRunResponse{RunID: runID})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	execution, err := h.repository.Execution(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(models.NewExecutionView(execution))
}

// CancelRun answers 202 when an executing run was asked to stop, and 200 when a stored ledger was cancelled.
func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	execution, signalled, err := h.executions.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	status := fiber.StatusOK
	if signalled {
		status = fiber.StatusAccepted
	}

	return c.Status(status).JSON(models.NewExecutionView(execution))
}

// RetryRun admits a new run of the workflow of a finished run.
func (h *APIHandlers) RetryRun(c fiber.Ctx) error {
	runID, err := h.executions.Retry(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(CreateRunResponse{RunID: runID})
}

func (h *APIHandlers) RecordRunMetric(c fiber.Ctx) error {
	var req RecordMetricRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	metric := models.Metric{Key: req.Key, Type: req.Type, Value: req.Value, Unit: req.Unit}
	if req.Timestamp != nil {
		metric.Timestamp = *req.Timestamp
	}

	execution, err := h.executions.RecordMetric(c.Context(), c.Params("id"), metric)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.NewExecutionView(execution))
}

// GetRunFeedback reports on a run. The notes query parameter is echoed in the report.
func (h *APIHandlers) GetRunFeedback(c fiber.Ctx) error {
	feedback, err := h.executions.Feedback(c.Context(), c.Params("id"), c.Query("notes"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(feedback)
}

// ListRuns lists the ledgers of the workflow named by the workflow_id query parameter.
func (h *APIHandlers) ListRuns(c fiber.Ctx) error {
	workflowID := strings.TrimSpace(c.Query("workflow_id"))
	if workflowID == "" {
		return badRequest(c, "workflow_id query parameter is required")
	}

	executions, err := h.repository.Executions(c.Context(), workflowID)
	if err != nil {
		return handleError(c, err)
	}

	views := make([]*models.ExecutionView, 0, len(executions))
	for _, execution := range executions {
		views = append(views, models.NewExecutionView(execution))
	}

	return c.JSON(fiber.Map{"runs": views, "total_count": len(views)})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.FetchAll(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	views := make([]*models.WorkflowView, 0, len(workflows))
	for _, wf := range workflows {
		views = append(views, models.NewWorkflowView(wf))
	}

	return c.JSON(fiber.Map{"workflows": views, "total_count": len(views)})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, err := h.repository.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(models.NewWorkflowView(wf))
}

// CreateWorkflow stores a definition payload after checking node configs against the registered step schemas.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var payload map[string]any
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	loaded, err := h.loader.Load(payload)
	if err != nil {
		return handleError(c, err)
	}

	created, err := h.repository.Create(c.Context(), loaded.Workflow.Definition())
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.NewWorkflowView(created))
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.repository.Delete(c.Context(), c.Params("id")); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetSteps lists the registered step types.
func (h *APIHandlers) GetSteps(c fiber.Ctx) error {
	if h.registry == nil {
		return c.JSON(fiber.Map{"steps": []string{}})
	}

	return c.JSON(fiber.Map{"steps": h.registry.Types()})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.repository.HealthCheck(c.Context())
	admission := h.runs.Metrics()

	status, httpStatus := "healthy", http.StatusOK
	if !ok {
		status, httpStatus = "unhealthy", http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(HealthResponse{
		Status:         status,
		ActiveRuns:     admission.ActiveRuns,
		MaxConcurrency: admission.MaxConcurrency,
		Checkers:       map[string]string{"repository": repositoryCheck},
	})
}
