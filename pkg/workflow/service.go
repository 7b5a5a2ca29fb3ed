package workflow

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dukex/stepflow/pkg/definition"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// RunController starts and stops runs executing in this process. RunManager implements it.
type RunController interface {
	Enqueue(ctx context.Context, req RunRequest) error
	Cancel(runID string) bool
	Active(runID string) bool
}

type ExecutionServiceOptions struct {
	Executions persistence.ExecutionRepository
	Workflows  persistence.WorkflowRepository
	// Runs is optional. Without it executing runs cannot be cancelled and nothing can be retried.
	Runs   RunController
	Logger *slog.Logger
}

// ExecutionService changes stored ledgers after their run was admitted: cancelling, retrying, recording
// metrics and reporting feedback.
type ExecutionService struct {
	executions persistence.ExecutionRepository
	workflows  persistence.WorkflowRepository
	runs       RunController
	logger     *slog.Logger

	// mu serializes read-modify-write cycles on stored ledgers.
	mu sync.Mutex
}

func NewExecutionService(opts ExecutionServiceOptions) (*ExecutionService, error) {
	if opts.Executions == nil {
		return nil, models.NewValidationError("execution repository is required")
	}

	if opts.Workflows == nil {
		return nil, models.NewValidationError("workflow repository is required")
	}

	return &ExecutionService{
		executions: opts.Executions,
		workflows:  opts.Workflows,
		runs:       opts.Runs,
		logger:     log.OrNop(opts.Logger).With("module", "execution_service"),
	}, nil
}

// Cancel stops a run. An executing run has its context cancelled and records the cancellation itself, which
// Cancel reports with signalled set. Any other run that is not terminal is cancelled in the store.
func (s *ExecutionService) Cancel(ctx context.Context, id string) (execution *models.WorkflowExecution, signalled bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, err = s.execution(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if s.runs != nil && s.runs.Cancel(execution.ID()) {
		s.logger.InfoContext(ctx, "Cancellation requested", "run_id", execution.ID())

		return execution, true, nil
	}

	if execution.Status().IsTerminal() {
		return nil, false, models.NewInvalidTransition("execution %s is already %s", execution.ID(), execution.Status())
	}

	execution.MarkCancelled()

	if err := s.executions.SaveExecution(ctx, execution); err != nil {
		return nil, false, err
	}

	s.logger.InfoContext(ctx, "Execution cancelled", "run_id", execution.ID())

	return execution, false, nil
}

// Retry admits a new run of the workflow of a finished execution and returns the new run id.
func (s *ExecutionService) Retry(ctx context.Context, id string) (string, error) {
	if s.runs == nil {
		return "", models.NewInvariantViolation("retrying requires a run controller")
	}

	execution, err := s.execution(ctx, id)
	if err != nil {
		return "", err
	}

	if !execution.Status().IsTerminal() {
		return "", models.NewInvalidTransition("execution %s is still %s", execution.ID(), execution.Status())
	}

	wf, err := s.workflow(ctx, execution.WorkflowID())
	if err != nil {
		return "", err
	}

	runID := uuid.NewString()
	if err := s.runs.Enqueue(ctx, RunRequest{RunID: runID, Workflow: definition.Payload(wf)}); err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "Execution retried", "run_id", execution.ID(), "retry_run_id", runID)

	return runID, nil
}

// RecordMetric appends metric to a stored ledger. Ledgers of executing runs are owned by their executor and
// are refused.
func (s *ExecutionService) RecordMetric(ctx context.Context, id string, metric models.Metric) (*models.WorkflowExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	execution, err := s.execution(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.runs != nil && s.runs.Active(execution.ID()) {
		return nil, models.NewInvalidTransition("execution %s is still executing", execution.ID())
	}

	if err := execution.AddMetric(metric); err != nil {
		return nil, err
	}

	if err := s.executions.SaveExecution(ctx, execution); err != nil {
		return nil, err
	}

	return execution, nil
}

// Feedback reports on a stored execution against its workflow.
func (s *ExecutionService) Feedback(ctx context.Context, id, notes string) (*models.Feedback, error) {
	execution, err := s.execution(ctx, id)
	if err != nil {
		return nil, err
	}

	wf, err := s.workflow(ctx, execution.WorkflowID())
	if err != nil {
		return nil, err
	}

	return models.NewFeedback(wf, execution, strings.TrimSpace(notes))
}

func (s *ExecutionService) execution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	execution, err := s.executions.ExecutionByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, persistence.NewExecutionError("fetch", id, persistence.ErrExecutionNotFound)
	}

	return execution, nil
}

func (s *ExecutionService) workflow(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := s.workflows.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf == nil {
		return nil, persistence.NewWorkflowError("fetch", id, persistence.ErrWorkflowNotFound)
	}

	return wf, nil
}
