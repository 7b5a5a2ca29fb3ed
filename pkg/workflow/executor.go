package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/stepflow/pkg/expression"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/protocol"
	"github.com/dukex/stepflow/pkg/registry"
)

// StepDurationKey returns the ledger metric key under which the duration of a step is recorded in
// milliseconds.
func StepDurationKey(stepID string) string {
	return "step." + stepID + ".duration"
}

// ExecutorOptions configures one run. Workflow, Execution, RunID, Registry, SessionFactory and SinkFactory
// are required.
type ExecutorOptions struct {
	Workflow    *models.Workflow
	Execution   *models.WorkflowExecution
	RunID       string
	StartNodeID string

	Registry       *registry.Registry
	SessionFactory protocol.SessionFactory
	SinkFactory    protocol.SinkFactory
	Publisher      protocol.Publisher

	// Evaluator is shared between runs so compiled conditions are reused.
	Evaluator *expression.Evaluator
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Metrics   *metrics.Metrics
}

// Executor drives one run of a workflow: it walks the cursor, dispatches steps, records the ledger and
// reports the lifecycle to the event sink.
type Executor struct {
	workflow    *models.Workflow
	execution   *models.WorkflowExecution
	runID       string
	startNodeID string

	runner         *NodeRunner
	conditions     *ConditionEvaluator
	sessionFactory protocol.SessionFactory
	sinkFactory    protocol.SinkFactory
	publish        protocol.Publisher

	execCtx *ExecutionContext
	// outputs holds the outputs of completed steps by step id.
	outputs map[string]any
	session protocol.Session
	sink    protocol.EventSink

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	switch {
	case opts.Workflow == nil:
		return nil, models.NewValidationError("workflow is required")
	case opts.Execution == nil:
		return nil, models.NewValidationError("execution is required")
	case strings.TrimSpace(opts.RunID) == "":
		return nil, models.NewValidationError("runId is required")
	case opts.Registry == nil:
		return nil, models.NewValidationError("step registry is required")
	case opts.SessionFactory == nil:
		return nil, models.NewValidationError("session factory is required")
	case opts.SinkFactory == nil:
		return nil, models.NewValidationError("event sink factory is required")
	}

	// A ledger without an allowlist would auto-complete after its first node.
	if len(opts.Execution.ExpectedNodeIDs()) == 0 {
		if err := opts.Execution.ExpectNodes(opts.Workflow.NodeIDs()); err != nil {
			return nil, err
		}
	}

	logger := log.OrNop(opts.Logger).With(
		"module", "workflow_executor",
		"run_id", opts.RunID,
		"workflow_id", opts.Workflow.ID(),
	)

	return &Executor{
		workflow:       opts.Workflow,
		execution:      opts.Execution,
		runID:          opts.RunID,
		startNodeID:    opts.StartNodeID,
		runner:         NewNodeRunner(opts.Registry),
		conditions:     NewConditionEvaluator(opts.Evaluator, logger, opts.RunID, opts.Workflow.ID()),
		sessionFactory: opts.SessionFactory,
		sinkFactory:    opts.SinkFactory,
		publish:        opts.Publisher,
		execCtx:        NewExecutionContext(),
		outputs:        make(map[string]any),
		logger:         logger,
		tracer:         otelhelper.OrNoop(opts.Tracer),
		metrics:        opts.Metrics,
	}, nil
}

// Variables exposes the run variables, mostly for inspection after Run returns.
func (e *Executor) Variables() map[string]any {
	return e.execCtx.Variables()
}

// Run executes the workflow until the cursor finishes, a step fails or ctx is cancelled. The session is
// released on every exit path. The returned error is the first failure; it has already been recorded in the
// ledger and reported through the sink. A cancelled run ends with a Cancelled ledger.
func (e *Executor) Run(ctx context.Context) (err error) {
	ctx = protocol.WithRunID(ctx, e.runID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.RunIDKey, e.runID),
		attribute.String(otelhelper.WorkflowIDKey, e.workflow.ID()),
		attribute.String(otelhelper.WorkflowNameKey, e.workflow.Name()),
	)
	defer span.End()

	e.sink = e.sinkFactory(protocol.SinkParams{RunID: e.runID, Logger: e.logger, Publish: e.publish})
	if e.sink == nil {
		e.sink = protocol.NopSink{}
	}

	defer func() {
		if err != nil {
			otelhelper.SetError(span, err, attribute.String(otelhelper.RunIDKey, e.runID))
		}

		span.SetAttributes(attribute.String(otelhelper.RunStatusKey, string(e.execution.Status())))
	}()

	if err := e.openSession(ctx); err != nil {
		return e.stop(ctx, err)
	}

	defer e.closeSession(context.WithoutCancel(ctx))

	e.logger.InfoContext(ctx, "Starting workflow run")
	e.emitRunStatus(ctx, protocol.RunStatusRunning, nil)

	if err := e.runSteps(ctx); err != nil {
		return e.stop(ctx, err)
	}

	e.emitRunStatus(ctx, protocol.RunStatusSucceeded, nil)
	e.notify(ctx, "done", e.sink.Done(ctx, protocol.Done{OK: true, Execution: e.view()}))
	e.logger.InfoContext(ctx, "Workflow run succeeded")

	return nil
}

func (e *Executor) openSession(ctx context.Context) error {
	session, err := e.sessionFactory(ctx, e.logger)
	if err != nil {
		return fmt.Errorf("create automation session: %w", err)
	}

	if session == nil {
		return models.NewInvariantViolation("session factory returned no session")
	}

	initialized, err := session.Init(ctx)
	if err != nil {
		if cerr := session.Cleanup(ctx); cerr != nil {
			e.logger.WarnContext(ctx, "Failed to clean up automation session", "error", cerr)
		}

		return fmt.Errorf("init automation session: %w", err)
	}

	if initialized == nil {
		initialized = session
	}

	e.session = initialized

	e.notify(ctx, "attach_browser_session", e.sink.AttachBrowserSession(ctx, e.session))
	e.notify(ctx, "start_screenshot_stream", e.sink.StartScreenshotStream(ctx))

	return nil
}

func (e *Executor) closeSession(ctx context.Context) {
	e.notify(ctx, "stop_screenshot_stream", e.sink.StopScreenshotStream(ctx))

	if err := e.session.Cleanup(ctx); err != nil {
		e.logger.WarnContext(ctx, "Failed to clean up automation session", "error", err)
	}
}

func (e *Executor) runSteps(ctx context.Context) error {
	plan, err := NewPlan(e.workflow, e.startNodeID)
	if err != nil {
		return err
	}

	cursor := NewCursor(plan, e.conditions.Evaluate)

	var lastOutputs any

	step, ok := cursor.Current()
	for ok {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before step %s: %w", step.ID, err)
		}

		if status := e.execution.Status(); status != models.StatusRunning {
			return models.NewInvariantViolation("execution %s is %s before step %s ran", e.execution.ID(), status, step.ID)
		}

		outcome, meta, err := e.executeStep(ctx, step)
		if err != nil {
			return err
		}

		lastOutputs = outcome.Outputs

		step, ok, err = cursor.Advance(ctx, outcome.RequestedNextID, AdvanceContext{
			Step:          step,
			Outputs:       outcome.Outputs,
			HandlerResult: outcome.Result,
			Meta:          meta,
			Variables:     e.execCtx.Variables(),
			Execution:     e.execution,
			Session:       e.session,
		})
		if err != nil {
			return err
		}
	}

	switch e.execution.Status() {
	case models.StatusRunning:
		// Expected nodes on branches that were not taken never ran.
		return e.execution.Finish(lastOutputs)
	case models.StatusSucceeded:
		return nil
	default:
		return models.NewInvalidTransition("execution %s ended with status %s", e.execution.ID(), e.execution.Status())
	}
}

func (e *Executor) executeStep(ctx context.Context, step models.Step) (Outcome, protocol.StepMeta, error) {
	index := e.execCtx.NextStepIndex()
	meta := protocol.StepMeta{StepID: step.ID, Type: step.Type, Name: step.Name}
	logger := e.logger.With("step_id", step.ID, "step_type", step.Type, "step_index", index)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepTypeKey, step.Type),
		attribute.String(otelhelper.StepNameKey, step.Name),
		attribute.Int(otelhelper.StepIndexKey, index),
	)
	defer span.End()

	e.notify(ctx, "step_start", e.sink.StepStart(ctx, protocol.StepStart{Index: index, Meta: meta}))

	if err := e.execution.StartNode(step.ID); err != nil {
		otelhelper.SetError(span, err)

		return Outcome{}, meta, err
	}

	logger.DebugContext(ctx, "Executing step")

	started := time.Now()

	outcome, err := e.runner.Execute(ctx, step, protocol.Runtime{
		Session:    e.session,
		Execution:  e.execCtx,
		Outputs:    maps.Clone(e.outputs),
		Meta:       meta,
		Index:      index,
		RunID:      e.runID,
		WorkflowID: e.workflow.ID(),
		Publish:    e.publish,
		Logger:     logger,
	})

	elapsed := time.Since(started)
	e.recordDuration(ctx, logger, step.ID, elapsed)

	if err != nil {
		e.metrics.StepFinished(step.Type, metrics.StatusFailed, elapsed)
		otelhelper.SetError(span, err)

		message := err.Error()
		if ctx.Err() != nil {
			// The step was interrupted, it did not fail on its own.
			if cerr := e.execution.CancelNode(step.ID); cerr != nil {
				logger.WarnContext(ctx, "Failed to record node cancellation", "error", cerr)
			}
		} else if ferr := e.execution.FailNode(step.ID, message); ferr != nil {
			logger.WarnContext(ctx, "Failed to record node failure", "error", ferr)
		}

		logger.ErrorContext(ctx, "Step failed", "error", err)
		e.notify(ctx, "step_end", e.sink.StepEnd(ctx, protocol.StepEnd{Index: index, OK: false, Error: message, Meta: meta}))

		return Outcome{}, meta, fmt.Errorf("step %s: %w", step.ID, err)
	}

	e.metrics.StepFinished(step.Type, metrics.StatusSucceeded, elapsed)

	if err := e.execution.CompleteNode(step.ID, outcome.Outputs); err != nil {
		otelhelper.SetError(span, err)

		return Outcome{}, meta, err
	}

	e.outputs[step.ID] = outcome.Outputs

	if outcome.RequestedNextID != "" {
		span.SetAttributes(attribute.String(otelhelper.NextStepIDKey, outcome.RequestedNextID))
	}

	e.notify(ctx, "step_end", e.sink.StepEnd(ctx, protocol.StepEnd{Index: index, OK: true, Meta: meta}))

	return outcome, meta, nil
}

func (e *Executor) recordDuration(ctx context.Context, logger *slog.Logger, stepID string, elapsed time.Duration) {
	err := e.execution.AddMetric(models.Metric{
		Key:   StepDurationKey(stepID),
		Type:  "duration",
		Value: elapsed.Milliseconds(),
		Unit:  "ms",
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to record step duration", "error", err)
	}
}

// stop ends the run after err. A cancelled ctx ends it as Cancelled, anything else as Failed.
func (e *Executor) stop(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return e.cancel(context.WithoutCancel(ctx), err)
	}

	return e.fail(ctx, err)
}

func (e *Executor) cancel(ctx context.Context, err error) error {
	message := err.Error()

	e.execution.MarkCancelled()

	e.logger.WarnContext(ctx, "Workflow run cancelled", "error", err)
	e.emitRunStatus(ctx, protocol.RunStatusCancelled, map[string]any{"error": message})
	e.notify(ctx, "done", e.sink.Done(ctx, protocol.Done{OK: false, Error: message, Execution: e.view()}))

	return err
}

// fail records a run failure that was not already recorded by a failed step, then reports it.
func (e *Executor) fail(ctx context.Context, err error) error {
	message := err.Error()

	if e.execution.Status() == models.StatusRunning {
		if aerr := e.execution.Abort(message); aerr != nil {
			e.logger.WarnContext(ctx, "Failed to abort execution", "error", aerr)
		}
	}

	e.logger.ErrorContext(ctx, "Workflow run failed", "error", err)
	e.emitRunStatus(ctx, protocol.RunStatusFailed, map[string]any{"error": message})
	e.notify(ctx, "done", e.sink.Done(ctx, protocol.Done{OK: false, Error: message, Execution: e.view()}))

	return err
}

func (e *Executor) emitRunStatus(ctx context.Context, status string, extra map[string]any) {
	payload := map[string]any{"execution": e.view()}
	for k, v := range extra {
		payload[k] = v
	}

	e.notify(ctx, "run_status", e.sink.RunStatus(ctx, status, payload))
}

func (e *Executor) view() *models.ExecutionView {
	return models.NewExecutionView(e.execution)
}

// notify logs a sink failure. Sink failures never change the outcome of a run.
func (e *Executor) notify(ctx context.Context, event string, err error) {
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to deliver run event", "event", event, "error", err)
	}
}
