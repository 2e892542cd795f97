package stages

import (
	"context"
	"fmt"

	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/ingest"
	"rul-pipeline/internal/pipeline"
)

// IngestStage pulls raw records from the configured source into a CSV.
type IngestStage struct {
	baseStage
}

// NewIngestStage creates the ingest stage
func NewIngestStage(deps Deps) *IngestStage {
	return &IngestStage{baseStage: newBaseStage(NameIngest, deps)}
}

// Run executes the stage
func (s *IngestStage) Run(ctx context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	cfg, err := s.store.DataIngestionConfig()
	if err != nil {
		return nil, err
	}

	desc := ingest.Descriptor{URI: cfg.URI, Database: cfg.Database, Collection: cfg.Collection}
	src, err := ingest.NewSource(cfg.Source, desc, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Ingesting records",
		logging.String("source", src.Describe()),
		logging.Duration("timeout", cfg.Timeout),
	)

	ds, err := ingest.NewIngestor(src, s.logger).Run(ctx, cfg.OutputPath())
	if err != nil {
		return nil, err
	}

	rc.SetArtifact(ArtifactDataset, cfg.OutputPath())
	return &pipeline.StageResult{
		Artifacts: map[string]string{ArtifactDataset: cfg.OutputPath()},
		Message:   fmt.Sprintf("%d rows, %d columns", ds.Len(), len(ds.Columns())),
	}, nil
}
