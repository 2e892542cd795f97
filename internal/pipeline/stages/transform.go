package stages

import (
	"context"
	"fmt"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/dataset"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/transform"
)

// TransformStage splits the dataset and fits the preprocessor.
type TransformStage struct {
	baseStage
}

// NewTransformStage creates the transform stage
func NewTransformStage(deps Deps) *TransformStage {
	return &TransformStage{baseStage: newBaseStage(NameTransform, deps)}
}

// Run executes the stage
func (s *TransformStage) Run(_ context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	cfg, err := s.store.DataTransformationConfig()
	if err != nil {
		return nil, err
	}

	ds, err := dataset.ReadCSV(cfg.DataPath)
	if err != nil {
		return nil, errors.NotFoundError("ingested dataset "+cfg.DataPath).WithContext("cause", err.Error())
	}

	out, pre, err := transform.Apply(ds, transform.Config{
		Numerical:   cfg.Numerical,
		Categorical: cfg.Categorical,
		Target:      cfg.Target,
		TestSize:    cfg.TestSize,
		Seed:        cfg.Seed,
	})
	if err != nil {
		return nil, errors.ValidationError("transformation failed").WithContext("cause", err.Error())
	}

	paths, err := out.Save(cfg.RootDir, cfg.Target, pre)
	if err != nil {
		return nil, errors.InternalError("failed to persist transformation output", err)
	}
	for name, path := range paths {
		rc.SetArtifact(name, path)
	}

	s.logger.Info("Transformation complete",
		logging.Int("train_rows", len(out.YTrain)),
		logging.Int("test_rows", len(out.YTest)),
		logging.Int("features", len(out.XTrain.Columns)),
	)
	return &pipeline.StageResult{
		Artifacts: paths,
		Message:   fmt.Sprintf("%d train rows, %d test rows", len(out.YTrain), len(out.YTest)),
	}, nil
}
