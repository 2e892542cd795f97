// Package tracker records training runs in an external experiment tracker.
package tracker

import (
	"context"
	"time"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
)

// Run is one evaluated training run.
type Run struct {
	Name      string
	Params    map[string]string
	Metrics   map[string]float64
	Tags      map[string]string
	StartedAt time.Time
	EndedAt   time.Time
}

// Tracker logs runs.
type Tracker interface {
	LogRun(ctx context.Context, run Run) error
}

// Noop discards every run.
type Noop struct{}

// LogRun implements Tracker.
func (Noop) LogRun(context.Context, Run) error { return nil }

// BestEffort logs runs through an inner tracker and never fails the caller.
// Failures are logged as tracker logging errors and swallowed.
type BestEffort struct {
	inner  Tracker
	logger logging.Logger
}

// NewBestEffort wraps inner.
func NewBestEffort(inner Tracker, logger logging.Logger) *BestEffort {
	if inner == nil {
		inner = Noop{}
	}
	return &BestEffort{inner: inner, logger: logger}
}

// LogRun implements Tracker and always returns nil.
func (b *BestEffort) LogRun(ctx context.Context, run Run) error {
	if err := b.inner.LogRun(ctx, run); err != nil {
		b.logger.Error("Experiment tracker logging failed",
			errors.TrackerLoggingError("failed to log run "+run.Name, err),
			logging.String("run_name", run.Name),
		)
	}
	return nil
}
