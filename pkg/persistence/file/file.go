// Package file provides file-based persistence for workflows and execution ledgers.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidID = errors.New("id contains invalid characters")

// Persistence implements the persistence.Persistence interface using the file system. Workflows live in
// <root>/workflows and ledgers in <root>/executions, one JSON document per id.
type Persistence struct {
	*WorkflowRepository
	*ExecutionRepository

	root string
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		WorkflowRepository:  NewWorkflowRepository(cleanRoot),
		ExecutionRepository: NewExecutionRepository(cleanRoot),
		root:                cleanRoot,
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	info, err := os.Stat(fp.root)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", fp.root)
	}

	return nil
}

// validateID rejects ids that would escape the storage directory.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	return nil
}

func documentPath(root, dir, id string) string {
	return filepath.Join(root, dir, id+".json")
}

// writeDocument writes through a temporary file so readers never observe a partial document.
func writeDocument(root, dir, id string, data []byte) error {
	if err := os.MkdirAll(filepath.Join(root, dir), 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	target := documentPath(root, dir, id)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, target)
}

// readDocument returns nil data when the document does not exist.
func readDocument(root, dir, id string) ([]byte, error) {
	data, err := os.ReadFile(documentPath(root, dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	return data, nil
}

// listDocuments returns the ids stored in dir in lexical order.
func listDocuments(root, dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, dir, "*.json"))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(match), ".json"))
	}

	return ids, nil
}
