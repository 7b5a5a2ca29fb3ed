// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/dukex/stepflow/pkg/registry"
)

// NewRegistry registers the built-in steps and then the plugins under pluginsPath, so a plugin may replace a
// built-in step type. An empty pluginsPath skips plugin loading.
func NewRegistry(log *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)
	reg.RegisterDefaultSteps()

	if pluginsPath == "" {
		return reg, nil
	}

	if _, err := reg.LoadStepPlugins(pluginsPath); err != nil {
		return nil, fmt.Errorf("failed to load step plugins: %w", err)
	}

	return reg, nil
}
