package stages

import (
	"context"
	"fmt"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/dataset"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/schema"
)

// ValidateStage checks the ingested dataset against the schema and records
// the outcome in the status file. A non-conformant dataset only stops the run
// when halt_on_failure is set.
type ValidateStage struct {
	baseStage
}

// NewValidateStage creates the validate stage
func NewValidateStage(deps Deps) *ValidateStage {
	return &ValidateStage{baseStage: newBaseStage(NameValidate, deps)}
}

// Run executes the stage
func (s *ValidateStage) Run(_ context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	cfg, err := s.store.DataValidationConfig()
	if err != nil {
		return nil, err
	}

	ds, err := dataset.ReadCSV(cfg.DataPath)
	if err != nil {
		return nil, errors.NotFoundError("ingested dataset "+cfg.DataPath).WithContext("cause", err.Error())
	}

	v := schema.NewValidator(cfg.Schema, cfg.StatusFile,
		schema.WithStrictness(cfg.Strictness),
		schema.WithLogger(s.logger),
	)
	res, err := v.Run(ds)
	if err != nil {
		return nil, errors.InternalError("failed to write schema status", err)
	}

	rc.Set(ValueSchemaResult, res)
	rc.SetArtifact(ArtifactSchemaStatus, cfg.StatusFile)

	if !res.Valid {
		if cfg.HaltOnFailure {
			return nil, res.Err()
		}
		s.logger.Warn("Dataset does not conform to schema, continuing",
			logging.Strings("missing", res.Columns.Missing),
			logging.Strings("extra", res.Columns.Extra),
			logging.Int("type_mismatches", len(res.Types.Mismatches)),
		)
	}

	return &pipeline.StageResult{
		Artifacts: map[string]string{ArtifactSchemaStatus: cfg.StatusFile},
		Message:   fmt.Sprintf("schema valid: %t (%s)", res.Valid, res.Strictness),
	}, nil
}
