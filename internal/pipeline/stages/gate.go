package stages

import (
	"context"
	"fmt"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/evaluate"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/pipeline"
)

// GateStage checks the metrics bundle against the thresholds and writes the
// verdict. A failing verdict is a result, not an error.
type GateStage struct {
	baseStage
}

// NewGateStage creates the gate stage
func NewGateStage(deps Deps) *GateStage {
	return &GateStage{baseStage: newBaseStage(NameGate, deps)}
}

// Run executes the stage
func (s *GateStage) Run(_ context.Context, rc *pipeline.RunContext) (*pipeline.StageResult, error) {
	cfg, err := s.store.MetricsValidationConfig()
	if err != nil {
		return nil, err
	}

	bundle, err := evaluate.Load(cfg.MetricFile)
	if err != nil {
		return nil, errors.NotFoundError("metrics "+cfg.MetricFile).WithContext("cause", err.Error())
	}

	report := gate.Validate(bundle.Values(), cfg.Thresholds, cfg.Policy)
	if err := report.Save(cfg.StatusFile); err != nil {
		return nil, errors.InternalError("failed to write gate report", err)
	}

	rc.Set(ValueGateReport, report)
	rc.SetArtifact(ArtifactGateReport, cfg.StatusFile)

	if report.Passed() {
		s.logger.Info("Metrics gate passed",
			logging.String("policy", string(cfg.Policy)),
			logging.Strings("evaluated", report.Evaluated()),
		)
	} else {
		s.logger.Warn("Metrics gate failed",
			logging.String("policy", string(cfg.Policy)),
			logging.Strings("failed", report.Failed()),
		)
	}

	return &pipeline.StageResult{
		Artifacts: map[string]string{ArtifactGateReport: cfg.StatusFile},
		Message:   fmt.Sprintf("passed: %t (%s)", report.Passed(), cfg.Policy),
	}, nil
}
