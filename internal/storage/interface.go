// Package storage persists the history of pipeline runs.
//
// Two adapters are provided, SQLite for single-host use and PostgreSQL for
// shared deployments. Both create their schema on open and register
// themselves with the default registry:
//
//	import _ "rul-pipeline/internal/storage/sqlite"
//
//	store, err := storage.NewRunStore(cfg)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
package storage

import (
	"time"

	"rul-pipeline/internal/common/registry"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// RunStore records pipeline runs.
type RunStore interface {
	// Connection management
	Close() error
	Health() error

	// SaveRun inserts a new run
	SaveRun(run *Run) error

	// UpdateRun replaces the mutable fields of an existing run
	UpdateRun(run *Run) error

	// GetRun retrieves a single run by ID
	GetRun(id string) (*Run, error)

	// ListRuns retrieves runs newest first together with the total count
	ListRuns(limit, offset int) ([]*Run, int, error)
}

// Run is one recorded pipeline invocation.
type Run struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Stages     []StageRecord      `json:"stages"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Passed     *bool              `json:"passed,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// StageRecord is the recorded outcome of one stage.
type StageRecord struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// StorageConfig is implemented by adapter configurations.
type StorageConfig interface {
	Validate() error
	GetType() string
	GetConnectionString() string
}

// StorageFactory creates a RunStore from configuration.
type StorageFactory = registry.Factory[StorageConfig, RunStore]

// GenericConfig is a simple map-based implementation of StorageConfig
type GenericConfig map[string]interface{}

func (gc GenericConfig) Validate() error {
	return nil
}

func (gc GenericConfig) GetType() string {
	if t, ok := gc["type"].(string); ok {
		return t
	}
	return "unknown"
}

func (gc GenericConfig) GetConnectionString() string {
	if cs, ok := gc["connection_string"].(string); ok {
		return cs
	}
	return ""
}

// String returns the string value stored under key.
func (gc GenericConfig) String(key string) string {
	s, _ := gc[key].(string)
	return s
}

// Int returns the integer value stored under key.
func (gc GenericConfig) Int(key string) int {
	switch v := gc[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
