package storage

import (
	"encoding/json"
	"fmt"
	"math"
)

// EncodeRun renders the structured columns of a run as JSON text.
func EncodeRun(run *Run) (stages, metrics string, err error) {
	s := run.Stages
	if s == nil {
		s = []StageRecord{}
	}
	sb, err := json.Marshal(s)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode stages: %w", err)
	}
	m := run.Metrics
	if m == nil {
		m = map[string]float64{}
	}
	mb, err := json.Marshal(finite(m))
	if err != nil {
		return "", "", fmt.Errorf("failed to encode metrics: %w", err)
	}
	return string(sb), string(mb), nil
}

// DecodeRun fills the structured columns of run from their JSON text.
func DecodeRun(run *Run, stages, metrics string) error {
	if stages != "" {
		if err := json.Unmarshal([]byte(stages), &run.Stages); err != nil {
			return fmt.Errorf("failed to decode stages of run %s: %w", run.ID, err)
		}
	}
	if metrics != "" {
		if err := json.Unmarshal([]byte(metrics), &run.Metrics); err != nil {
			return fmt.Errorf("failed to decode metrics of run %s: %w", run.ID, err)
		}
	}
	return nil
}

// finite drops values JSON cannot carry.
func finite(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}
