package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stepflow/pkg/definition"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/mocks"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	workflowtest "github.com/dukex/stepflow/pkg/testutil"
)

// fakeRuns is a RunController that records calls.
type fakeRuns struct {
	active     map[string]bool
	cancelled  []string
	enqueued   []RunRequest
	enqueueErr error
}

func (f *fakeRuns) Enqueue(_ context.Context, req RunRequest) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}

	f.enqueued = append(f.enqueued, req)

	return nil
}

func (f *fakeRuns) Cancel(runID string) bool {
	if !f.active[runID] {
		return false
	}

	f.cancelled = append(f.cancelled, runID)

	return true
}

func (f *fakeRuns) Active(runID string) bool { return f.active[runID] }

func storedExecution(t *testing.T, wf *models.Workflow, finish bool) *models.WorkflowExecution {
	t.Helper()

	exec := newStartedExecution(t, wf)
	if finish {
		require.NoError(t, exec.Finish(nil))
	}

	return exec
}

func newTestService(t *testing.T, store *mocks.MockPersistence, runs RunController) *ExecutionService {
	t.Helper()

	service, err := NewExecutionService(ExecutionServiceOptions{
		Executions: store,
		Workflows:  store,
		Runs:       runs,
		Logger:     log.Nop(),
	})
	require.NoError(t, err)

	return service
}

func TestNewExecutionService_RequiresRepositories(t *testing.T) {
	_, err := NewExecutionService(ExecutionServiceOptions{Workflows: &mocks.MockPersistence{}})
	assert.True(t, models.IsValidation(err))

	_, err = NewExecutionService(ExecutionServiceOptions{Executions: &mocks.MockPersistence{}})
	assert.True(t, models.IsValidation(err))
}

func TestExecutionService_CancelExecutingRun(t *testing.T) {
	wf := workflowtest.LinearWorkflow(t, "wf-1", "a", "b")
	exec := storedExecution(t, wf, false)

	store := &mocks.MockPersistence{}
	store.On("ExecutionByID", mock.Anything, "run-1").Return(exec, nil)

	runs := &fakeRuns{active: map[string]bool{"run-1": true}}

	got, signalled, err := newTestService(t, store, runs).Cancel(t.Context(), "run-1")
	require.NoError(t, err)

	assert.True(t, signalled)
	assert.Same(t, exec, got)
	assert.Equal(t, []string{"run-1"}, runs.cancelled)
	assert.Equal(t, models.StatusRunning, exec.Status())
	store.AssertNotCalled(t, "SaveExecution", mock.Anything, mock.Anything)
}

func TestExecutionService_CancelStoredRun(t *testing.T) {
	wf := workflowtest.LinearWorkflow(t, "wf-1", "a", "b")
	exec := storedExecution(t, wf, false)

	store := &mocks.MockPersistence{}
	store.On("ExecutionByID", mock.Anything, "run-1").Return(exec, nil)
	store.On("SaveExecution", mock.Anything, exec).Return(nil).Once()

	got, signalled, err := newTestService(t, store, &fakeRuns{}).Cancel(t.Context(), "run-1")
	require.NoError(t, err)

	assert.False(t, signalled)
	assert.Equal(t, models.StatusCancelled, got.Status())
	store.AssertExpectations(t)
}

func TestExecutionService_CancelErrors(t *testing.T) {
	wf := workflowtest.LinearWorkflow(t, "wf-1", "a")

	store := &mocks.MockPersistence{}
	store.On("ExecutionByID", mock.Anything, "done").Return(storedExecution(t, wf, true), nil)
	store.On("ExecutionByID", mock.Anything, "missing").Return(nil, nil)

	service := newTestService(t, store, nil)

	_, _, err := service.Cancel(t.Context(), "done")
	assert.True(t, models.IsInvalidTransition(err))

	_, _, err = service.Cancel(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestExecutionService_Retry(t *testing.T) {
	wf := workflowtest.LinearWorkflow(t, "wf-1", "a", "b")

	store := &mocks.MockPersistence{}
	store.On("ExecutionByID", mock.Anything, "run-1").Return(storedExecution(t, wf, true), nil)
	store.On("WorkflowByID", mock.Anything, "wf-1").Return(wf, nil)

	runs := &fakeRuns{}

	runID, err := newTestService(t, store, runs).Retry(t.Context(), "run-1")
	require.NoError(t, err)

	require.Len(t, runs.enqueued, 1)
	assert.NotEmpty(t, runID)
	assert.NotEqual(t, "run-1", runID)
	assert.Equal(t, runID, runs.enqueued[0].RunID)

	loaded, err := definition.Load(runs.enqueued[0].Workflow)
	require.NoError(t, err)
	assert.Equal(t, wf.Definition().Nodes, loaded.Workflow.Definition().Nodes)
	assert.Equal(t, wf.Edges(), loaded.Workflow.Edges())
}

func TestExecutionService_RetryErrors(t *testing.T) {
	wf := workflowtest.LinearWorkflow(t, "wf-1", "a")

	store := &mocks.MockPersistence{}
	store.On("ExecutionByID", mock.Anything, "running").Return(storedExecution(t, wf, false), nil)

	orphan, err := models.NewWorkflowExecution("orphan", "gone", nil)
	require.NoError(t, err)
	require.NoError(t, orphan.Start())
	require.NoError(t, orphan.Abort("crashed"))

	store.On("ExecutionByID", mock.Anything, "orphan").Return(orphan, nil)
	store.On("WorkflowByID", mock.Anything, "gone").Return(nil, nil)

	_, err = newTestService(t, store, nil).Retry(t.Context(), "running")
	assert.True(t, models.IsInvariantViolation(err))

	service := newTestService(t, store, &fakeRuns{})

	_, err = service.Retry(t.Context(), "running")
	assert.True(t, models.IsInvalidTransition(err))

	_, err = service.Retry(t.Context(), "orphan")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestExecutionService_RecordMetric(t *testing.T) {
	wf := workflowtest.LinearWorkflow(t, "wf-1", "a")
	exec := storedExecution(t, wf, true)

	store := &mocks.MockPersistence{}
	store.On("ExecutionByID", mock.Anything, "run-1").Return(exec, nil)
	store.On("ExecutionByID", mock.Anything, "live").Return(storedExecution(t, wf, false), nil)
	store.On("SaveExecution", mock.Anything, exec).Return(nil).Once()

	service := newTestService(t, store, &fakeRuns{active: map[string]bool{"run-1": false, "live": true}})

	got, err := service.RecordMetric(t.Context(), "run-1", models.Metric{Key: "latency", Type: "duration", Unit: "ms", Value: 120})
	require.NoError(t, err)
	require.Len(t, got.Metrics(), 1)
	assert.Equal(t, 120, got.Metrics()[0].Value)

	_, err = service.RecordMetric(t.Context(), "run-1", models.Metric{Key: "latency", Type: "duration", Unit: "s", Value: 1})
	assert.True(t, models.IsInvariantViolation(err))

	_, err = service.RecordMetric(t.Context(), "run-1", models.Metric{Key: "latency", Type: "duration"})
	assert.True(t, models.IsValidation(err))

	_, err = service.RecordMetric(t.Context(), "live", models.Metric{Key: "latency", Type: "duration", Unit: "ms", Value: 80})
	assert.True(t, models.IsInvalidTransition(err))

	store.AssertExpectations(t)
}

func TestExecutionService_Feedback(t *testing.T) {
	wf := workflowtest.LinearWorkflow(t, "wf-1", "a", "b")
	exec := storedExecution(t, wf, true)

	store := &mocks.MockPersistence{}
	store.On("ExecutionByID", mock.Anything, "run-1").Return(exec, nil)
	store.On("WorkflowByID", mock.Anything, "wf-1").Return(wf, nil)

	feedback, err := newTestService(t, store, nil).Feedback(t.Context(), "run-1", "  first try ")
	require.NoError(t, err)

	assert.Equal(t, "first try", feedback.Notes)
	assert.Equal(t, 2, feedback.Summary.TotalNodes)
	assert.Equal(t, 2, feedback.Summary.SkippedNodes)
}
