package file

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

const workflowsDir = "workflows"

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// Workflows returns every stored workflow ordered by creation time, newest first.
func (wr *WorkflowRepository) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := listDocuments(wr.root, workflowsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.WorkflowByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if workflow != nil {
			workflows = append(workflows, workflow)
		}
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].Definition().CreatedAt.After(workflows[j].Definition().CreatedAt)
	})

	return workflows, nil
}

// WorkflowByID returns nil without error when the workflow does not exist.
func (wr *WorkflowRepository) WorkflowByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	if err := validateID(workflowID); err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", workflowID, err)
	}

	body, err := readDocument(wr.root, workflowsDir, workflowID)
	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", workflowID, err)
	}

	if body == nil {
		return nil, nil
	}

	return persistence.DecodeWorkflow(workflowID, body)
}

func (wr *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if err := validateID(workflow.ID()); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID(), err)
	}

	data, err := persistence.EncodeWorkflow(workflow)
	if err != nil {
		return err
	}

	if err := writeDocument(wr.root, workflowsDir, workflow.ID(), data); err != nil {
		return persistence.NewWorkflowError("SaveWorkflow", workflow.ID(), err)
	}

	return nil
}

// DeleteWorkflow removes the workflow. Deleting a missing workflow is not an error.
func (wr *WorkflowRepository) DeleteWorkflow(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	err := os.Remove(documentPath(wr.root, workflowsDir, id))
	if err != nil && !os.IsNotExist(err) {
		return persistence.NewWorkflowError("DeleteWorkflow", id, err)
	}

	return nil
}
