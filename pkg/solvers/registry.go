// Package solvers maps backend names to the solver implementations behind
// them. The engine talks to backends through the engine.Backend interface;
// this package owns which names exist and how instances are built.
package solvers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/atelier-sched/atelier/pkg/engine"
	"github.com/atelier-sched/atelier/pkg/solvers/cpsat"
)

// DefaultBackend is the backend used when a request does not name one.
const DefaultBackend = cpsat.Name

// Factory builds a backend instance.
type Factory func() (engine.Backend, error)

// Registry maps backend names to factories. The zero value is not usable;
// start from NewRegistry or DefaultRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry creates a registry holding the built-in backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Built-in names cannot collide in a fresh registry.
	_ = r.Register(cpsat.Name, func() (engine.Backend, error) {
		return cpsat.New(), nil
	})
	return r
}

// Register adds a backend factory under a name. Registering a taken name is
// an error, never a silent replacement.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return engine.NewValidationError("backend registration needs a name and a factory", nil).
			WithCode(engine.ErrCodeUnknownBackend)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return engine.NewValidationError(fmt.Sprintf("backend %q is already registered", name), nil).
			WithCode(engine.ErrCodeUnknownBackend).
			WithResource(name)
	}
	r.factories[name] = factory
	return nil
}

// Open builds the named backend. An empty name opens the default backend.
func (r *Registry) Open(name string) (engine.Backend, error) {
	if name == "" {
		name = DefaultBackend
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, engine.NewValidationError(fmt.Sprintf("unknown backend %q", name), nil).
			WithCode(engine.ErrCodeUnknownBackend).
			WithResource(name).
			WithDetail("available", r.Names())
	}

	backend, err := factory()
	if err != nil {
		return nil, engine.NewSolverError(fmt.Sprintf("failed to open backend %q", name), err).
			WithCode(engine.ErrCodeSolveFailed).
			WithResource(name)
	}
	return backend, nil
}

// Names lists the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
