package evaluate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Bundle is an immutable set of named metric values.
type Bundle struct {
	values map[string]float64
}

// NewBundle copies values into a new bundle.
func NewBundle(values map[string]float64) *Bundle {
	b := &Bundle{values: make(map[string]float64, len(values))}
	for k, v := range values {
		b.values[k] = v
	}
	return b
}

// Get returns a single metric.
func (b *Bundle) Get(name string) (float64, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Values returns a copy of all metrics.
func (b *Bundle) Values() map[string]float64 {
	out := make(map[string]float64, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Names returns the metric names in sorted order.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.values))
	for k := range b.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON writes a flat object. Non-finite values are written as the
// strings "+Inf", "-Inf" and "NaN".
func (b *Bundle) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(b.values))
	for k, v := range b.values {
		switch {
		case math.IsInf(v, 1):
			out[k] = "+Inf"
		case math.IsInf(v, -1):
			out[k] = "-Inf"
		case math.IsNaN(v):
			out[k] = "NaN"
		default:
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the format written by MarshalJSON.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make(map[string]float64, len(raw))
	for k, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("metric %s: unexpected value %q", k, s)
			}
			values[k] = v
			continue
		}
		var f float64
		if err := json.Unmarshal(msg, &f); err != nil {
			return fmt.Errorf("metric %s: %w", k, err)
		}
		values[k] = f
	}
	b.values = values
	return nil
}

// Save writes the bundle as indented JSON.
func (b *Bundle) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metrics %s: %w", path, err)
	}
	return nil
}

// Load reads a bundle written by Save.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics %s: %w", path, err)
	}
	b := &Bundle{}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("failed to decode metrics %s: %w", path, err)
	}
	return b, nil
}
