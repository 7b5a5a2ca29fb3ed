package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/redis"
	"github.com/dukex/stepflow/pkg/testutil"
)

var _ persistence.Persistence = (*redis.Persistence)(nil)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected redis.Config
		wantErr  bool
	}{
		{
			name:     "defaults",
			raw:      "redis://localhost:6379/0",
			expected: redis.Config{URL: "redis://localhost:6379/0", Prefix: "stepflow", TTL: 7 * 24 * time.Hour},
		},
		{
			name:     "prefix and ttl are consumed",
			raw:      "redis://localhost:6379/1?prefix=runs&ttl=1h&protocol=3",
			expected: redis.Config{URL: "redis://localhost:6379/1?protocol=3", Prefix: "runs", TTL: time.Hour},
		},
		{
			name:     "zero ttl keeps ledgers",
			raw:      "redis://localhost:6379?ttl=0s",
			expected: redis.Config{URL: "redis://localhost:6379", Prefix: "stepflow", TTL: 0},
		},
		{name: "bad ttl", raw: "redis://localhost:6379?ttl=soon", wantErr: true},
		{name: "negative ttl", raw: "redis://localhost:6379?ttl=-1h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := redis.ParseConfig(tt.raw)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func setupRedis(t *testing.T, ttl time.Duration) (*redis.Persistence, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	p, err := redis.NewPersistence(ctx, log.Nop(), redis.Config{URL: "redis://" + endpoint + "/0", Prefix: "test", TTL: ttl})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, p.Close(ctx))
	})

	return p, ctx
}

func TestPersistence_Workflows(t *testing.T) {
	p, ctx := setupRedis(t, 0)

	require.NoError(t, p.HealthCheck(ctx))

	first := testutil.LinearWorkflow(t, "wf-1", "open", "submit")
	require.NoError(t, p.SaveWorkflow(ctx, first))

	time.Sleep(5 * time.Millisecond)

	second := testutil.LinearWorkflow(t, "wf-2", "open")
	require.NoError(t, p.SaveWorkflow(ctx, second))
	require.NoError(t, p.SaveWorkflow(ctx, first))

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "wf-2", all[0].ID())
	assert.Equal(t, "wf-1", all[1].ID())

	loaded, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Nodes(), 2)

	require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))
	require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))

	missing, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err = p.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPersistence_Executions(t *testing.T) {
	p, ctx := setupRedis(t, time.Hour)

	older, err := models.NewWorkflowExecution("run-1", "wf-1", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, older.Start())
	require.NoError(t, p.SaveExecution(ctx, older))

	time.Sleep(5 * time.Millisecond)

	newer, err := models.NewWorkflowExecution("run-2", "wf-1", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, newer.Start())
	require.NoError(t, newer.StartNode("a"))
	require.NoError(t, newer.FailNode("a", "selector not found"))
	require.NoError(t, p.SaveExecution(ctx, newer))

	loaded, err := p.ExecutionByID(ctx, "run-2")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.StatusFailed, loaded.Status())
	assert.Equal(t, "selector not found", loaded.Result().Error)

	list, err := p.ExecutionsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-2", list[0].ID())

	none, err := p.ExecutionsByWorkflow(ctx, "wf-404")
	require.NoError(t, err)
	assert.Empty(t, none)

	missing, err := p.ExecutionByID(ctx, "run-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
