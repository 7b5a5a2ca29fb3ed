package workflow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/stepflow/pkg/definition"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// Runner runs one prepared execution.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerParams are the per-run values handed to a RunnerFactory.
type RunnerParams struct {
	Workflow    *models.Workflow
	Execution   *models.WorkflowExecution
	RunID       string
	StartNodeID string
}

type RunnerFactory func(params RunnerParams) (Runner, error)

// ExecutorFactory returns a RunnerFactory that builds an Executor from base and the per-run params.
func ExecutorFactory(base ExecutorOptions) RunnerFactory {
	return func(params RunnerParams) (Runner, error) {
		opts := base
		opts.Workflow = params.Workflow
		opts.Execution = params.Execution
		opts.RunID = params.RunID
		opts.StartNodeID = params.StartNodeID

		return NewExecutor(opts)
	}
}

// Loader turns a definition payload into a workflow.
type Loader func(payload map[string]any) (*definition.Loaded, error)

type RunWorkflowOptions struct {
	RunnerFactory RunnerFactory
	// Loader defaults to definition.Load.
	Loader Loader
	// Executions and Workflows are optional. When set, the workflow and the ledger are saved.
	Executions persistence.ExecutionRepository
	Workflows  persistence.WorkflowRepository
	Logger     *slog.Logger
}

// RunWorkflow loads a definition, prepares its ledger and runs it.
type RunWorkflow struct {
	runnerFactory RunnerFactory
	loader        Loader
	executions    persistence.ExecutionRepository
	workflows     persistence.WorkflowRepository
	logger        *slog.Logger
}

func NewRunWorkflow(opts RunWorkflowOptions) (*RunWorkflow, error) {
	if opts.RunnerFactory == nil {
		return nil, models.NewValidationError("runner factory is required")
	}

	loader := opts.Loader
	if loader == nil {
		loader = definition.Load
	}

	return &RunWorkflow{
		runnerFactory: opts.RunnerFactory,
		loader:        loader,
		executions:    opts.Executions,
		workflows:     opts.Workflows,
		logger:        log.OrNop(opts.Logger).With("module", "run_workflow"),
	}, nil
}

// Execute runs the workflow described by payload under runID and returns its ledger. The ledger is returned
// together with the run error when the run fails.
func (u *RunWorkflow) Execute(ctx context.Context, runID string, payload map[string]any) (*models.WorkflowExecution, error) {
	id := strings.TrimSpace(runID)
	if id == "" {
		return nil, models.NewValidationError("runId is required")
	}

	loaded, err := u.loader(payload)
	if err != nil {
		return nil, err
	}

	wf := loaded.Workflow
	logger := log.FromContext(ctx, u.logger.With("run_id", id)).With("workflow_id", wf.ID())

	execution, err := models.NewWorkflowExecution(id, wf.ID(), wf.NodeIDs())
	if err != nil {
		return nil, err
	}

	if err := execution.Start(); err != nil {
		return nil, err
	}

	if u.workflows != nil {
		if err := u.workflows.SaveWorkflow(ctx, wf); err != nil {
			logger.WarnContext(ctx, "Failed to save workflow", "error", err)
		}
	}

	u.save(ctx, logger, execution)

	runner, err := u.runnerFactory(RunnerParams{
		Workflow:    wf,
		Execution:   execution,
		RunID:       id,
		StartNodeID: loaded.StartNodeID,
	})
	if err != nil {
		if aerr := execution.Abort(err.Error()); aerr != nil {
			logger.WarnContext(ctx, "Failed to abort execution", "error", aerr)
		}

		u.save(ctx, logger, execution)

		return execution, err
	}

	runErr := runner.Run(ctx)

	// A cancelled run still has its final ledger saved.
	u.save(context.WithoutCancel(ctx), logger, execution)

	return execution, runErr
}

// Run adapts Execute to RunFunc.
func (u *RunWorkflow) Run(ctx context.Context, req RunRequest) error {
	_, err := u.Execute(ctx, req.RunID, req.Workflow)

	return err
}

func (u *RunWorkflow) save(ctx context.Context, logger *slog.Logger, execution *models.WorkflowExecution) {
	if u.executions == nil {
		return
	}

	if err := u.executions.SaveExecution(ctx, execution); err != nil {
		logger.WarnContext(ctx, "Failed to save execution", "status", execution.Status(), "error", err)
	}
}
