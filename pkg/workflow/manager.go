package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/models"
)

// CodeRunnerBusy is the error code of a run refused by admission control.
const CodeRunnerBusy = "runner_busy"

// RunRequest asks for one run of a workflow definition payload.
type RunRequest struct {
	RunID    string
	Workflow map[string]any
}

// RunFunc executes an admitted run to completion.
type RunFunc func(ctx context.Context, req RunRequest) error

// RunMetrics is a snapshot of the admission state.
type RunMetrics struct {
	ActiveRuns     int `json:"activeRuns"`
	MaxConcurrency int `json:"maxConcurrency"`
}

type RunManagerOptions struct {
	// MaxConcurrency is the number of runs admitted at once. Zero means 1.
	MaxConcurrency int
	Run            RunFunc
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// RunManager admits runs up to a concurrency ceiling and executes each admitted run in its own goroutine.
// Runs are never queued: Enqueue either starts the run or refuses it.
type RunManager struct {
	maxConcurrency int
	run            RunFunc
	logger         *slog.Logger
	metrics        *metrics.Metrics

	mu         sync.Mutex
	activeRuns int
	cancels    map[string]context.CancelFunc
	wg         sync.WaitGroup
}

func NewRunManager(opts RunManagerOptions) (*RunManager, error) {
	if opts.Run == nil {
		return nil, models.NewValidationError("runWorkflow is required")
	}

	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency == 0 {
		maxConcurrency = 1
	}

	if maxConcurrency < 0 {
		return nil, models.NewValidationError("maxConcurrency must be a positive number")
	}

	return &RunManager{
		maxConcurrency: maxConcurrency,
		run:            opts.Run,
		logger:         log.OrNop(opts.Logger).With("module", "run_manager"),
		metrics:        opts.Metrics,
		cancels:        make(map[string]context.CancelFunc),
	}, nil
}

// Metrics returns the current admission state.
func (m *RunManager) Metrics() RunMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return RunMetrics{ActiveRuns: m.activeRuns, MaxConcurrency: m.maxConcurrency}
}

// Enqueue admits req or refuses it with a busy invariant violation. Admission is the only outcome the
// caller observes: the run itself continues after ctx is cancelled and its failure is only logged. A run id
// that is still executing is refused as a duplicate.
func (m *RunManager) Enqueue(ctx context.Context, req RunRequest) error {
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		return models.NewValidationError("runId is required")
	}

	if req.Workflow == nil {
		return models.NewValidationError("workflow is required")
	}

	req.RunID = runID

	m.mu.Lock()
	if m.activeRuns >= m.maxConcurrency {
		active := m.activeRuns
		m.mu.Unlock()

		m.metrics.RunRejected()

		return models.NewInvariantViolation("runner busy").
			WithCode(CodeRunnerBusy).
			WithMetadata("active", active).
			WithMetadata("max", m.maxConcurrency)
	}

	if _, running := m.cancels[runID]; running {
		m.mu.Unlock()

		return models.NewDuplicateError("run %s is already executing", runID)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.activeRuns++
	m.cancels[runID] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	m.metrics.RunStarted()

	go m.execute(runCtx, req)

	return nil
}

// Cancel cancels the context of an executing run. It reports false when no run with that id is executing.
func (m *RunManager) Cancel(runID string) bool {
	m.mu.Lock()
	cancel, ok := m.cancels[strings.TrimSpace(runID)]
	m.mu.Unlock()

	if ok {
		cancel()
	}

	return ok
}

// Active reports whether the run is executing in this manager.
func (m *RunManager) Active(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.cancels[strings.TrimSpace(runID)]

	return ok
}

// Wait blocks until every admitted run has settled.
func (m *RunManager) Wait() {
	m.wg.Wait()
}

func (m *RunManager) execute(ctx context.Context, req RunRequest) {
	started := time.Now()
	status := metrics.StatusSucceeded
	logger := m.logger.With("run_id", req.RunID)
	ctx = log.WithContext(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			status = metrics.StatusFailed
			logger.ErrorContext(ctx, "Workflow execution panicked", "panic", fmt.Sprint(r))
		}

		m.mu.Lock()
		m.activeRuns--
		cancel := m.cancels[req.RunID]
		delete(m.cancels, req.RunID)
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		m.metrics.RunFinished(status, time.Since(started))
		m.wg.Done()
	}()

	if err := m.run(ctx, req); err != nil {
		status = metrics.StatusFailed
		logger.ErrorContext(ctx, "Workflow execution failed", "error", err)

		return
	}

	logger.InfoContext(ctx, "Workflow execution finished")
}

// IsBusy reports whether err is an admission refusal.
func IsBusy(err error) bool {
	return models.IsInvariantViolation(err) && models.CodeOf(err) == CodeRunnerBusy
}
