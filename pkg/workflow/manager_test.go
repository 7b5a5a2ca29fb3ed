package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/metrics"
	"github.com/dukex/stepflow/pkg/models"
)

var runPayload = map[string]any{"id": "wf-1"}

func TestNewRunManager(t *testing.T) {
	noop := func(context.Context, RunRequest) error { return nil }

	_, err := NewRunManager(RunManagerOptions{})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	_, err = NewRunManager(RunManagerOptions{Run: noop, MaxConcurrency: -1})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	m, err := NewRunManager(RunManagerOptions{Run: noop})
	require.NoError(t, err)
	assert.Equal(t, RunMetrics{ActiveRuns: 0, MaxConcurrency: 1}, m.Metrics())
}

func TestRunManager_EnqueueValidation(t *testing.T) {
	m, err := NewRunManager(RunManagerOptions{Run: func(context.Context, RunRequest) error { return nil }})
	require.NoError(t, err)

	err = m.Enqueue(t.Context(), RunRequest{RunID: "  ", Workflow: runPayload})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	err = m.Enqueue(t.Context(), RunRequest{RunID: "run-1"})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	assert.Equal(t, 0, m.Metrics().ActiveRuns)
}

func TestRunManager_RefusesWhenBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	m, err := NewRunManager(RunManagerOptions{
		MaxConcurrency: 1,
		Logger:         log.Nop(),
		Metrics:        met,
		Run: func(_ context.Context, req RunRequest) error {
			started <- req.RunID
			<-release

			return nil
		},
	})
	require.NoError(t, err)

	require.NoError(t, m.Enqueue(t.Context(), RunRequest{RunID: " run-1 ", Workflow: runPayload}))
	assert.Equal(t, "run-1", <-started)
	assert.Equal(t, RunMetrics{ActiveRuns: 1, MaxConcurrency: 1}, m.Metrics())

	err = m.Enqueue(t.Context(), RunRequest{RunID: "run-2", Workflow: runPayload})
	require.Error(t, err)
	assert.True(t, IsBusy(err))
	assert.True(t, models.IsInvariantViolation(err))

	var domainErr *models.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeRunnerBusy, domainErr.Code)
	assert.Equal(t, 1, domainErr.Metadata["active"])
	assert.Equal(t, 1, domainErr.Metadata["max"])

	close(release)
	m.Wait()

	assert.Equal(t, 0, m.Metrics().ActiveRuns)
	assert.InDelta(t, 1, testutil.ToFloat64(met.RunsRejected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(met.RunsTotal.WithLabelValues(metrics.StatusSucceeded)), 0)

	require.NoError(t, m.Enqueue(t.Context(), RunRequest{RunID: "run-3", Workflow: runPayload}))
	assert.Equal(t, "run-3", <-started)
	m.Wait()
}

func TestRunManager_ConcurrencyCeiling(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 3)

	m, err := NewRunManager(RunManagerOptions{
		MaxConcurrency: 2,
		Run: func(context.Context, RunRequest) error {
			started <- struct{}{}
			<-release

			return nil
		},
	})
	require.NoError(t, err)

	require.NoError(t, m.Enqueue(t.Context(), RunRequest{RunID: "a", Workflow: runPayload}))
	require.NoError(t, m.Enqueue(t.Context(), RunRequest{RunID: "b", Workflow: runPayload}))
	assert.True(t, IsBusy(m.Enqueue(t.Context(), RunRequest{RunID: "c", Workflow: runPayload})))

	<-started
	<-started
	close(release)
	m.Wait()

	assert.Equal(t, 0, m.Metrics().ActiveRuns)
}

func TestRunManager_FailedAndPanickingRunsReleaseSlot(t *testing.T) {
	tests := []struct {
		name string
		run  RunFunc
	}{
		{name: "error", run: func(context.Context, RunRequest) error { return errors.New("boom") }},
		{name: "panic", run: func(context.Context, RunRequest) error { panic("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met := metrics.New(prometheus.NewRegistry())

			m, err := NewRunManager(RunManagerOptions{Run: tt.run, Metrics: met})
			require.NoError(t, err)

			require.NoError(t, m.Enqueue(t.Context(), RunRequest{RunID: "run-1", Workflow: runPayload}))
			m.Wait()

			assert.Equal(t, 0, m.Metrics().ActiveRuns)
			assert.InDelta(t, 1, testutil.ToFloat64(met.RunsTotal.WithLabelValues(metrics.StatusFailed)), 0)
			require.NoError(t, m.Enqueue(t.Context(), RunRequest{RunID: "run-2", Workflow: runPayload}))
			m.Wait()
		})
	}
}

func TestRunManager_RunOutlivesRequestContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	release := make(chan struct{})
	ctxErr := make(chan error, 1)

	m, err := NewRunManager(RunManagerOptions{
		Run: func(ctx context.Context, _ RunRequest) error {
			<-release
			ctxErr <- ctx.Err()

			return nil
		},
	})
	require.NoError(t, err)

	require.NoError(t, m.Enqueue(ctx, RunRequest{RunID: "run-1", Workflow: runPayload}))
	cancel()
	close(release)
	m.Wait()

	select {
	case err := <-ctxErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not finish")
	}
}

func TestRunManager_CancelStopsRunContext(t *testing.T) {
	started := make(chan struct{})
	ctxErr := make(chan error, 1)

	m, err := NewRunManager(RunManagerOptions{
		MaxConcurrency: 2,
		Run: func(ctx context.Context, _ RunRequest) error {
			close(started)
			<-ctx.Done()
			ctxErr <- ctx.Err()

			return ctx.Err()
		},
	})
	require.NoError(t, err)

	assert.False(t, m.Cancel("run-1"))

	require.NoError(t, m.Enqueue(t.Context(), RunRequest{RunID: "run-1", Workflow: runPayload}))
	<-started

	assert.True(t, m.Active("run-1"))

	err = m.Enqueue(t.Context(), RunRequest{RunID: "run-1", Workflow: runPayload})
	require.Error(t, err)
	assert.True(t, models.IsDuplicate(err))

	assert.True(t, m.Cancel(" run-1 "))
	m.Wait()

	assert.ErrorIs(t, <-ctxErr, context.Canceled)
	assert.False(t, m.Active("run-1"))
	assert.False(t, m.Cancel("run-1"))
	assert.Equal(t, 0, m.Metrics().ActiveRuns)
}
