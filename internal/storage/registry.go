package storage

import "rul-pipeline/internal/common/registry"

// Registry holds the run store factories.
type Registry = registry.Registry[StorageConfig, RunStore]

// NewRegistry creates an empty storage registry.
func NewRegistry() *Registry {
	return registry.New[StorageConfig, RunStore]("storage")
}

// DefaultRegistry receives the adapters compiled into the binary.
var DefaultRegistry = NewRegistry()

func Register(storageType string, factory StorageFactory) {
	DefaultRegistry.Register(storageType, factory)
}

func Create(storageType string, config StorageConfig) (RunStore, error) {
	return DefaultRegistry.Create(storageType, config)
}
