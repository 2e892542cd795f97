package stages

import (
	"context"
	"fmt"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/configstore"
	"rul-pipeline/internal/evaluate"
	"rul-pipeline/internal/model"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/tracker"
	"rul-pipeline/internal/transform"
)

// EvaluateStage scores the trained model on the test partition, writes the
// metrics bundle and reports the run to the experiment tracker.
type EvaluateStage struct {
	baseStage
	tracker tracker.Tracker
}

// NewEvaluateStage creates the evaluate stage
func NewEvaluateStage(deps Deps) *EvaluateStage {
	return &EvaluateStage{baseStage: newBaseStage(NameEvaluate, deps), tracker: deps.Tracker}
}

// Run executes the stage
func (s *EvaluateStage) Run(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	cfg, err := s.store.ModelEvaluationConfig()
	if err != nil {
		return nil, err
	}

	m, err := model.Load(cfg.ModelPath)
	if err != nil {
		return nil, errors.NotFoundError("model "+cfg.ModelPath).WithContext("cause", err.Error())
	}
	X, err := transform.LoadMatrix(cfg.TestDataPath)
	if err != nil {
		return nil, errors.NotFoundError("test features "+cfg.TestDataPath).WithContext("cause", err.Error())
	}
	y, err := transform.ReadTarget(cfg.TestTargetPath, cfg.Target)
	if err != nil {
		return nil, errors.NotFoundError("test target "+cfg.TestTargetPath).WithContext("cause", err.Error())
	}

	pred, err := m.Predict(X.Rows)
	if err != nil {
		return nil, errors.InternalError("prediction failed", err)
	}
	bundle, err := evaluate.Score(y, pred)
	if err != nil {
		return nil, errors.InternalError("scoring failed", err)
	}
	if err := bundle.Save(cfg.MetricFile); err != nil {
		return nil, errors.InternalError("failed to write metrics", err)
	}

	rc.Set(ValueMetrics, bundle)
	rc.SetArtifact(ArtifactMetrics, cfg.MetricFile)

	fields := make([]logging.Field, 0, len(bundle.Names()))
	for _, name := range bundle.Names() {
		v, _ := bundle.Get(name)
		fields = append(fields, logging.Float64(name, v))
	}
	s.logger.Info("Model evaluated", fields...)

	s.trackerFor(cfg).LogRun(ctx, tracker.Run{
		Name:    cfg.RunName,
		Params:  cfg.AllParams,
		Metrics: bundle.Values(),
		Tags: map[string]string{
			"run_id":       rc.RunID,
			"model_family": cfg.Family,
		},
		StartedAt: rc.StartedAt,
	})

	mae, _ := bundle.Get(evaluate.MAE)
	return &pipeline.StageResult{
		Artifacts: map[string]string{ArtifactMetrics: cfg.MetricFile},
		Message:   fmt.Sprintf("MAE %.4f on %d rows", mae, len(y)),
	}, nil
}

// trackerFor returns a tracker whose failures never reach the caller.
func (s *EvaluateStage) trackerFor(cfg *configstore.ModelEvaluationConfig) tracker.Tracker {
	inner := s.tracker
	if inner == nil && cfg.MLflowURI != "" {
		inner = tracker.NewMLflow(cfg.MLflowURI, cfg.ExperimentID, defaultTrackerTimeout)
	}
	return tracker.NewBestEffort(inner, s.logger)
}
