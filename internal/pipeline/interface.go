// Package pipeline runs an ordered list of stages over a shared run context
// and records the outcome of each.
package pipeline

import (
	"context"
	"time"
)

// Status is the outcome of one stage.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Stage is one step of the pipeline.
type Stage interface {
	// Name returns the stage name
	Name() string

	// Run executes the stage, reading inputs from and publishing outputs to rc
	Run(ctx context.Context, rc *RunContext) (*StageResult, error)
}

// StageResult represents the result of a pipeline stage
type StageResult struct {
	Stage     string            `json:"stage"`
	Status    Status            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Result represents the result of pipeline execution
type Result struct {
	RunID         string        `json:"run_id"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	TotalDuration time.Duration `json:"total_duration"`
	StageResults  []StageResult `json:"stage_results"`
}

// Stage returns the recorded result of the named stage.
func (r *Result) Stage(name string) (StageResult, bool) {
	for _, sr := range r.StageResults {
		if sr.Stage == name {
			return sr, true
		}
	}
	return StageResult{}, false
}

// Observer is notified as stages and runs finish.
type Observer interface {
	StageFinished(rc *RunContext, result StageResult)
	RunFinished(rc *RunContext, result *Result)
}
