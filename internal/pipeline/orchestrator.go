package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"rul-pipeline/internal/common/logging"
	perrors "rul-pipeline/internal/pipeline/errors"
)

// Orchestrator executes stages strictly in order. The first failure aborts
// the run and every later stage is recorded as skipped. Nothing is retried.
type Orchestrator struct {
	logger       logging.Logger
	observers    []Observer
	stageTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(orch *Orchestrator) {
		if o != nil {
			orch.observers = append(orch.observers, o)
		}
	}
}

// WithStageTimeout bounds every stage. Zero means no bound. The error a
// stage returns on expiry stays reachable through the StageTimeoutError.
func WithStageTimeout(d time.Duration) Option {
	return func(orch *Orchestrator) {
		orch.stageTimeout = d
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(logger logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	o := &Orchestrator{logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs stages in order. It returns the full result and, when a stage
// failed, a *StageError naming it.
func (o *Orchestrator) Execute(ctx context.Context, rc *RunContext, stages ...Stage) (*Result, error) {
	result := &Result{
		RunID:        rc.RunID,
		StartedAt:    time.Now().UTC(),
		StageResults: make([]StageResult, 0, len(stages)),
	}
	logger := rc.Logger

	var runErr *perrors.StageError
	for _, stage := range stages {
		if runErr != nil {
			o.record(rc, result, StageResult{Stage: stage.Name(), Status: StatusSkipped})
			continue
		}

		sr, err := o.runStage(ctx, rc, stage)
		if err != nil {
			runErr = perrors.NewStageError(stage.Name(), err)
			logger.Error("Stage failed", err, logging.String("stage", stage.Name()))
		} else {
			logger.Info("Stage completed",
				logging.String("stage", stage.Name()),
				logging.Duration("duration", sr.Duration),
			)
		}
		o.record(rc, result, sr)
	}

	result.TotalDuration = time.Since(result.StartedAt)
	result.Success = runErr == nil
	if runErr != nil {
		result.Error = runErr.Error()
	}

	for _, obs := range o.observers {
		obs.RunFinished(rc, result)
	}

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, rc *RunContext, stage Stage) (StageResult, error) {
	started := time.Now().UTC()
	fail := func(err error) (StageResult, error) {
		return StageResult{
			Stage:     stage.Name(),
			Status:    StatusFailed,
			StartedAt: started,
			Duration:  time.Since(started),
			Error:     err.Error(),
		}, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	stageCtx := logging.ContextWithStage(ctx, stage.Name())
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, o.stageTimeout)
		defer cancel()
	}

	rc.Logger.Info("Stage started", logging.String("stage", stage.Name()))
	sr, err := stage.Run(stageCtx, rc)
	if err != nil {
		if o.stageTimeout > 0 && stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &perrors.StageTimeoutError{Stage: stage.Name(), Timeout: o.stageTimeout.String(), Inner: err}
		}
		return fail(err)
	}

	if sr == nil {
		sr = &StageResult{}
	}
	sr.Stage = stage.Name()
	sr.Status = StatusSucceeded
	sr.StartedAt = started
	sr.Duration = time.Since(started)
	return *sr, nil
}

func (o *Orchestrator) record(rc *RunContext, result *Result, sr StageResult) {
	result.StageResults = append(result.StageResults, sr)
	for _, obs := range o.observers {
		obs.StageFinished(rc, sr)
	}
}
