package pipeline

import (
	"sync"
	"time"

	"rul-pipeline/internal/common/logging"
)

// RunContext carries the run identity and the artifacts stages hand to each
// other.
type RunContext struct {
	RunID     string
	StartedAt time.Time
	Logger    logging.Logger

	mu        sync.RWMutex
	artifacts map[string]string
	values    map[string]interface{}
}

// NewRunContext creates an empty run context.
func NewRunContext(runID string, logger logging.Logger) *RunContext {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RunContext{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Logger:    logger.WithFields(logging.String("run_id", runID)),
		artifacts: make(map[string]string),
		values:    make(map[string]interface{}),
	}
}

// SetArtifact records the path of a persisted artifact.
func (c *RunContext) SetArtifact(key, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[key] = path
}

// Artifact returns the path recorded under key.
func (c *RunContext) Artifact(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.artifacts[key]
	return p, ok
}

// Artifacts returns a copy of every recorded artifact path.
func (c *RunContext) Artifacts() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.artifacts))
	for k, v := range c.artifacts {
		out[k] = v
	}
	return out
}

// Set stores an in-memory value for later stages.
func (c *RunContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get retrieves a value stored with Set.
func (c *RunContext) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}
