// Package registry maps adapter type names to factories. Adapter packages
// register themselves from init, so a blank import compiles one in:
//
//	import _ "rul-pipeline/internal/storage/sqlite"
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Config is implemented by adapter configurations.
type Config interface {
	Validate() error
}

// Factory builds a T from a configuration that has already been validated.
type Factory[C Config, T any] func(config C) (T, error)

// Registry holds the factories of one kind of adapter.
type Registry[C Config, T any] struct {
	kind      string
	mu        sync.RWMutex
	factories map[string]Factory[C, T]
}

// New creates an empty registry. kind names the adapters in errors.
func New[C Config, T any](kind string) *Registry[C, T] {
	return &Registry[C, T]{
		kind:      kind,
		factories: make(map[string]Factory[C, T]),
	}
}

// Register adds or replaces the factory for name.
func (r *Registry[C, T]) Register(name string, factory Factory[C, T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create validates config and builds the named adapter.
func (r *Registry[C, T]) Create(name string, config C) (T, error) {
	var zero T

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%s type %s not registered", r.kind, name)
	}

	if err := config.Validate(); err != nil {
		return zero, fmt.Errorf("invalid %s config: %w", name, err)
	}
	return factory(config)
}

// Has reports whether name is registered.
func (r *Registry[C, T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Types returns the registered names in sorted order.
func (r *Registry[C, T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
