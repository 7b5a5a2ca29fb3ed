package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/stepflow/pkg/models"
)

// EncodeWorkflow serializes the definition snapshot of a workflow. A zero CreatedAt is set to now and
// UpdatedAt always is.
func EncodeWorkflow(workflow *models.Workflow) ([]byte, error) {
	def := workflow.Definition()

	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}

	def.UpdatedAt = now

	data, err := json.Marshal(def)
	if err != nil {
		return nil, NewWorkflowError("encode", workflow.ID(), err)
	}

	return data, nil
}

// DecodeWorkflow rebuilds a workflow from its snapshot. A snapshot that no longer satisfies the graph
// invariants is reported as ErrCorruptRecord.
func DecodeWorkflow(id string, data []byte) (*models.Workflow, error) {
	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, NewWorkflowError("decode", id, fmt.Errorf("%w: %w", ErrCorruptRecord, err))
	}

	workflow, err := models.NewWorkflow(def)
	if err != nil {
		return nil, NewWorkflowError("decode", id, fmt.Errorf("%w: %w", ErrCorruptRecord, err))
	}

	return workflow, nil
}

// EncodeExecution serializes the ledger record of an execution.
func EncodeExecution(execution *models.WorkflowExecution) ([]byte, error) {
	data, err := json.Marshal(execution.Record())
	if err != nil {
		return nil, NewExecutionError("encode", execution.ID(), err)
	}

	return data, nil
}

// DecodeExecution rebuilds a ledger through models.RestoreExecution.
func DecodeExecution(id string, data []byte) (*models.WorkflowExecution, error) {
	var rec models.ExecutionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, NewExecutionError("decode", id, fmt.Errorf("%w: %w", ErrCorruptRecord, err))
	}

	execution, err := models.RestoreExecution(rec)
	if err != nil {
		return nil, NewExecutionError("decode", id, fmt.Errorf("%w: %w", ErrCorruptRecord, err))
	}

	return execution, nil
}
