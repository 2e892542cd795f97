// Package stages implements the pipeline steps from ingestion to the metrics
// gate. Every stage reads its inputs from the paths its configuration section
// names, so any single stage can run on its own against artifacts left by an
// earlier run.
package stages

import (
	"time"

	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/configstore"
	"rul-pipeline/internal/pipeline"
	perrors "rul-pipeline/internal/pipeline/errors"
	"rul-pipeline/internal/tracker"
)

// Stage names in execution order.
const (
	NameIngest    = "ingest"
	NameValidate  = "validate"
	NameTransform = "transform"
	NameTrain     = "train"
	NameEvaluate  = "evaluate"
	NameGate      = "gate"
)

// Keys of artifacts published to the run context.
const (
	ArtifactDataset      = "dataset"
	ArtifactSchemaStatus = "schema_status"
	ArtifactModel        = "model"
	ArtifactMetrics      = "metrics"
	ArtifactGateReport   = "gate_report"
)

// Keys of in-memory values published to the run context.
const (
	ValueSchemaResult = "schema_result"
	ValueMetrics      = "metrics"
	ValueGateReport   = "gate_report"
)

// Names lists every stage in execution order.
var Names = []string{NameIngest, NameValidate, NameTransform, NameTrain, NameEvaluate, NameGate}

const defaultTrackerTimeout = 10 * time.Second

// Deps are the collaborators shared by all stages.
type Deps struct {
	Store  *configstore.Store
	Logger logging.Logger

	// Tracker overrides the tracker the evaluate stage derives from its
	// section. It is always wrapped so that failures are swallowed.
	Tracker tracker.Tracker
}

func (d Deps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NewNopLogger()
	}
	return d.Logger
}

// baseStage holds what every stage carries.
type baseStage struct {
	name   string
	store  *configstore.Store
	logger logging.Logger
}

func newBaseStage(name string, deps Deps) baseStage {
	return baseStage{
		name:   name,
		store:  deps.Store,
		logger: deps.logger().WithFields(logging.String("stage", name)),
	}
}

// Name returns the stage name
func (b *baseStage) Name() string {
	return b.name
}

// Build returns every stage in execution order.
func Build(deps Deps) []pipeline.Stage {
	return []pipeline.Stage{
		NewIngestStage(deps),
		NewValidateStage(deps),
		NewTransformStage(deps),
		NewTrainStage(deps),
		NewEvaluateStage(deps),
		NewGateStage(deps),
	}
}

// Select returns the named stage, or every stage when name is empty.
func Select(deps Deps, name string) ([]pipeline.Stage, error) {
	all := Build(deps)
	if name == "" {
		return all, nil
	}
	for _, s := range all {
		if s.Name() == name {
			return []pipeline.Stage{s}, nil
		}
	}
	return nil, &perrors.UnknownStageError{Name: name, Known: Names}
}
