package stages

import (
	"context"
	"fmt"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/model"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/transform"
)

// TrainStage fits the boosted-tree regressor on the training partition.
type TrainStage struct {
	baseStage
}

// NewTrainStage creates the train stage
func NewTrainStage(deps Deps) *TrainStage {
	return &TrainStage{baseStage: newBaseStage(NameTrain, deps)}
}

// Run executes the stage
func (s *TrainStage) Run(_ context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	cfg, err := s.store.ModelTrainerConfig()
	if err != nil {
		return nil, err
	}

	X, err := transform.LoadMatrix(cfg.TrainDataPath)
	if err != nil {
		return nil, errors.TrainingError("failed to load training features", err)
	}
	y, err := transform.ReadTarget(cfg.TrainTargetPath, cfg.Target)
	if err != nil {
		return nil, errors.TrainingError("failed to load training target", err)
	}

	m, err := model.NewGBRegressor(cfg.Params, model.WithFeatureNames(X.Columns))
	if err != nil {
		return nil, err
	}
	s.logger.Info("Training model",
		logging.String("family", cfg.Family),
		logging.Int("rows", len(y)),
		logging.Int("n_estimators", cfg.Params.NEstimators),
	)
	if err := m.Fit(X.Rows, y); err != nil {
		return nil, err
	}

	if err := m.Save(cfg.ModelPath()); err != nil {
		return nil, errors.TrainingError("failed to persist model", err)
	}

	rc.SetArtifact(ArtifactModel, cfg.ModelPath())
	return &pipeline.StageResult{
		Artifacts: map[string]string{ArtifactModel: cfg.ModelPath()},
		Message:   fmt.Sprintf("%s with %d trees", cfg.Family, len(m.Trees)),
	}, nil
}
