// Package gate decides whether a trained model's metrics are acceptable.
package gate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Policy selects how threshold bounds are applied.
type Policy string

const (
	// PolicyStrict accepts lo <= v <= hi.
	PolicyStrict Policy = "strict"
	// PolicyWidened widens the window by one interval width on each side:
	// lo-(hi-lo) <= v <= hi+(hi-lo).
	PolicyWidened Policy = "widened"
)

// ParsePolicy accepts "strict", "widened" or empty (strict).
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(s)) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyWidened:
		return PolicyWidened, nil
	default:
		return "", fmt.Errorf("unknown threshold policy %q", s)
	}
}

// Bounds is the configured acceptable range of one metric.
type Bounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Thresholds maps metric names to their bounds.
type Thresholds map[string]Bounds

// Window returns the effective acceptance window under p.
func (b Bounds) Window(p Policy) (lo, hi float64) {
	if p == PolicyWidened {
		w := b.Max - b.Min
		return b.Min - w, b.Max + w
	}
	return b.Min, b.Max
}

// Status of a single metric check.
type Status string

const (
	StatusValid        Status = "Valid"
	StatusInvalid      Status = "Invalid"
	StatusNotAvailable Status = "NotAvailable"
)

// Record is the gate outcome for one metric. Bounds are the effective window.
type Record struct {
	Value      float64  `json:"value"`
	Status     Status   `json:"status"`
	IsValid    *bool    `json:"is_valid,omitempty"`
	LowerBound *float64 `json:"lower_bound,omitempty"`
	UpperBound *float64 `json:"upper_bound,omitempty"`
	Message    string   `json:"message"`
}

// MarshalJSON writes non-finite values as strings.
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	out := struct {
		Value      interface{} `json:"value"`
		LowerBound interface{} `json:"lower_bound,omitempty"`
		UpperBound interface{} `json:"upper_bound,omitempty"`
		alias
	}{
		Value: jsonFloat(r.Value),
		alias: alias(r),
	}
	if r.LowerBound != nil {
		out.LowerBound = jsonFloat(*r.LowerBound)
	}
	if r.UpperBound != nil {
		out.UpperBound = jsonFloat(*r.UpperBound)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the string forms written for non-finite values.
func (r *Record) UnmarshalJSON(data []byte) error {
	type alias Record
	in := struct {
		Value      json.RawMessage `json:"value"`
		LowerBound json.RawMessage `json:"lower_bound,omitempty"`
		UpperBound json.RawMessage `json:"upper_bound,omitempty"`
		*alias
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	v, err := parseJSONFloat(in.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	r.Value = v
	if len(in.LowerBound) > 0 {
		lo, err := parseJSONFloat(in.LowerBound)
		if err != nil {
			return fmt.Errorf("lower_bound: %w", err)
		}
		r.LowerBound = &lo
	}
	if len(in.UpperBound) > 0 {
		hi, err := parseJSONFloat(in.UpperBound)
		if err != nil {
			return fmt.Errorf("upper_bound: %w", err)
		}
		r.UpperBound = &hi
	}
	return nil
}

// Report is the gate verdict over a metrics bundle.
type Report struct {
	Policy  Policy            `json:"policy"`
	Metrics map[string]Record `json:"metrics"`
}

// Validate checks every metric in the bundle against thresholds under policy.
// A metric without a threshold is NotAvailable and does not affect the verdict.
func Validate(metrics map[string]float64, thresholds Thresholds, policy Policy) *Report {
	report := &Report{Policy: policy, Metrics: make(map[string]Record, len(metrics))}

	for name, value := range metrics {
		bounds, ok := thresholds[name]
		if !ok {
			report.Metrics[name] = Record{
				Value:   value,
				Status:  StatusNotAvailable,
				Message: fmt.Sprintf("Thresholds for %s not defined in 'metrics_thresholds.yaml'.", name),
			}
			continue
		}

		lo, hi := bounds.Window(policy)
		valid := value >= lo && value <= hi

		rec := Record{
			Value:      value,
			Status:     StatusValid,
			IsValid:    &valid,
			LowerBound: &lo,
			UpperBound: &hi,
			Message:    "Metric value is within acceptable bounds.",
		}
		if !valid {
			rec.Status = StatusInvalid
			rec.Message = "Metric value is outside acceptable bounds."
		}
		report.Metrics[name] = rec
	}

	return report
}

// Passed is the AND over all metrics that had a threshold. It is true when
// no metric was evaluated.
func (r *Report) Passed() bool {
	for _, rec := range r.Metrics {
		if rec.Status == StatusInvalid {
			return false
		}
	}
	return true
}

// Evaluated returns the names of metrics checked against a threshold, sorted.
func (r *Report) Evaluated() []string {
	var names []string
	for name, rec := range r.Metrics {
		if rec.Status != StatusNotAvailable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Failed returns the names of metrics outside their window, sorted.
func (r *Report) Failed() []string {
	var names []string
	for name, rec := range r.Metrics {
		if rec.Status == StatusInvalid {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MarshalJSON adds the overall verdict.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Metrics map[string]Record `json:"metrics"`
		Passed  bool              `json:"passed"`
		Policy  Policy            `json:"policy"`
	}{r.Metrics, r.Passed(), r.Policy})
}

// Save writes the report as indented JSON, replacing any previous report.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode gate report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write gate report %s: %w", path, err)
	}
	return nil
}

func jsonFloat(v float64) interface{} {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	default:
		return v
	}
}

func parseJSONFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case "+Inf", "Inf":
			return math.Inf(1), nil
		case "-Inf":
			return math.Inf(-1), nil
		case "NaN":
			return math.NaN(), nil
		default:
			return 0, fmt.Errorf("unexpected value %q", s)
		}
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Metrics map[string]Record `json:"metrics"`
		Policy  Policy            `json:"policy"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode gate report %s: %w", path, err)
	}
	return &Report{Policy: doc.Policy, Metrics: doc.Metrics}, nil
}
