package storage

import (
	"sync"
	"time"

	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/evaluate"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/pipeline/stages"
)

// Recorder mirrors a pipeline run into a RunStore as it progresses. Store
// failures are logged and never affect the run.
type Recorder struct {
	store  RunStore
	logger logging.Logger

	mu  sync.Mutex
	run *Run
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store RunStore, logger logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Recorder{store: store, logger: logger}
}

// Begin inserts the run in the running state.
func (r *Recorder) Begin(rc *pipeline.RunContext) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.run = &Run{
		ID:        rc.RunID,
		Status:    RunStatusRunning,
		StartedAt: rc.StartedAt,
	}
	if err := r.store.SaveRun(r.run); err != nil {
		r.logger.Error("Failed to record run start", err, logging.String("run_id", rc.RunID))
	}
}

// StageFinished implements pipeline.Observer.
func (r *Recorder) StageFinished(rc *pipeline.RunContext, result pipeline.StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return
	}

	r.run.Stages = append(r.run.Stages, StageRecord{
		Name:       result.Stage,
		Status:     string(result.Status),
		StartedAt:  result.StartedAt,
		DurationMS: result.Duration.Milliseconds(),
		Message:    result.Message,
		Error:      result.Error,
	})
	r.update(rc)
}

// RunFinished implements pipeline.Observer.
func (r *Recorder) RunFinished(rc *pipeline.RunContext, result *pipeline.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run == nil {
		return
	}

	finished := time.Now().UTC()
	r.run.FinishedAt = &finished
	r.run.Status = RunStatusSucceeded
	if !result.Success {
		r.run.Status = RunStatusFailed
		r.run.Error = result.Error
	}
	if v, ok := rc.Get(stages.ValueMetrics); ok {
		if bundle, ok := v.(*evaluate.Bundle); ok {
			r.run.Metrics = bundle.Values()
		}
	}
	if v, ok := rc.Get(stages.ValueGateReport); ok {
		if report, ok := v.(*gate.Report); ok {
			passed := report.Passed()
			r.run.Passed = &passed
		}
	}
	r.update(rc)
}

func (r *Recorder) update(rc *pipeline.RunContext) {
	if err := r.store.UpdateRun(r.run); err != nil {
		r.logger.Error("Failed to record run progress", err, logging.String("run_id", rc.RunID))
	}
}
