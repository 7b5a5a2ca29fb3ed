// Package registry maps step types to the handlers that execute them.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"plugin"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/stepflow/pkg/protocol"
)

var ErrPluginSymbol = errors.New("plugin symbol has unexpected type")

// Registry holds step handlers by type. Registering a type twice replaces the earlier handler.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	handlers  map[string]protocol.StepHandler
	factories map[string]protocol.StepFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		handlers:  make(map[string]protocol.StepHandler),
		factories: make(map[string]protocol.StepFactory),
	}
}

// Register installs a handler for a step type.
func (r *Registry) Register(stepType string, handler protocol.StepHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[stepType] = handler
	delete(r.factories, stepType)
}

// RegisterStep installs the handler of a factory and keeps its metadata.
func (r *Registry) RegisterStep(factory protocol.StepFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[factory.ID()] = factory.Handler()
	r.factories[factory.ID()] = factory
}

// Handler returns the handler for a step type.
func (r *Registry) Handler(stepType string) (protocol.StepHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[stepType]

	return handler, ok
}

// Handlers returns a snapshot of every registered handler.
func (r *Registry) Handlers() map[string]protocol.StepHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]protocol.StepHandler, len(r.handlers))
	for k, v := range r.handlers {
		out[k] = v
	}

	return out
}

// Types returns the registered step types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for stepType := range r.handlers {
		types = append(types, stepType)
	}

	sort.Strings(types)

	return types
}

// Schema returns the config schema of a step type registered through a factory.
func (r *Registry) Schema(stepType string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[stepType]
	if !ok {
		return nil, false
	}

	return factory.Schema(), true
}

// LoadStepPlugins opens every shared object under <pluginsPath>/steps and registers the StepFactory each
// one exports as the symbol "Step".
func (r *Registry) LoadStepPlugins(pluginsPath string) ([]protocol.StepFactory, error) {
	factories, err := loadPlugin[protocol.StepFactory](r.logger, pluginsPath, "Step")
	if err != nil {
		return nil, err
	}

	for _, factory := range factories {
		r.RegisterStep(factory)
	}

	return factories, nil
}

func loadPlugin[T any](logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	rootPath := pluginsPath + "/" + strings.ToLower(symbolName) + "s"
	root := os.DirFS(rootPath)

	pluginPathList, err := fs.Glob(root, "*.so")
	if err != nil {
		return nil, err
	}

	l := logger.With(slog.String("path", pluginsPath), slog.String("type", symbolName))
	l.Info("Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(rootPath + "/" + p)
		if err != nil {
			return nil, fmt.Errorf("open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("lookup %s in plugin %s: %w", symbolName, p, err)
		}

		castV, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s in %s is %T", ErrPluginSymbol, symbolName, p, v)
		}

		pluginList = append(pluginList, castV)

		l.Info("Loaded step plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
