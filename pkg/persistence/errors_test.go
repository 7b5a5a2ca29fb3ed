package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("WorkflowByID", "workflow-123", persistence.ErrWorkflowNotFound)
		executionErr := persistence.NewExecutionError("ExecutionByID", "run-1", persistence.ErrExecutionNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsExecutionNotFound(executionErr))
		assert.True(t, persistence.IsNotFound(executionErr))
		assert.False(t, persistence.IsWorkflowNotFound(executionErr))

		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
		assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", executionErr), persistence.ErrExecutionNotFound))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("SaveWorkflow", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "SaveWorkflow")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})

	t.Run("message is included", func(t *testing.T) {
		err := &persistence.WorkflowError{Op: "Load", WorkflowID: "wf", Err: persistence.ErrCorruptRecord, Message: "cycle"}

		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("domain errors survive wrapping", func(t *testing.T) {
		err := persistence.NewWorkflowError("Load", "wf", models.NewInvariantViolation("cycle"))

		assert.True(t, models.IsInvariantViolation(err))
	})

	t.Run("execution error contains context", func(t *testing.T) {
		err := persistence.NewExecutionError("SaveExecution", "run-9", errors.New("disk full"))

		assert.Equal(t, "SaveExecution operation failed for execution run-9: disk full", err.Error())
	})
}
