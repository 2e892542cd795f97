package transform

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"rul-pipeline/internal/dataset"
)

// Matrix is a dense feature matrix with named columns.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// StandardScaler centers each column on its mean and divides by its
// population standard deviation. Constant columns keep a divisor of 1.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit learns per-column mean and deviation.
func (s *StandardScaler) Fit(cols [][]float64) {
	s.Mean = make([]float64, len(cols))
	s.Std = make([]float64, len(cols))
	for j, col := range cols {
		n := float64(len(col))
		if n == 0 {
			s.Std[j] = 1
			continue
		}
		for _, v := range col {
			s.Mean[j] += v
		}
		s.Mean[j] /= n

		variance := 0.0
		for _, v := range col {
			d := v - s.Mean[j]
			variance += d * d
		}
		s.Std[j] = math.Sqrt(variance / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
}

// Scale applies the learned transform to a single value of column j.
func (s *StandardScaler) Scale(j int, v float64) float64 {
	return (v - s.Mean[j]) / s.Std[j]
}

// OneHotEncoder expands categorical columns into indicator columns.
// Categories are learned on the training partition; unseen values encode
// as all zeros.
type OneHotEncoder struct {
	Categories [][]string
}

// Fit learns the sorted category set of each column.
func (e *OneHotEncoder) Fit(cols [][]string) {
	e.Categories = make([][]string, len(cols))
	for j, col := range cols {
		seen := make(map[string]bool)
		for _, v := range col {
			if !seen[v] {
				seen[v] = true
				e.Categories[j] = append(e.Categories[j], v)
			}
		}
		sort.Strings(e.Categories[j])
	}
}

// Width is the number of output columns.
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, c := range e.Categories {
		w += len(c)
	}
	return w
}

// Preprocessor scales numerical columns and one-hot encodes categorical ones.
// Output columns are the numerical columns in order followed by one indicator
// per learned category.
type Preprocessor struct {
	Numerical   []string
	Categorical []string
	Scaler      StandardScaler
	Encoder     OneHotEncoder
	Fitted      bool
}

// NewPreprocessor declares the columns to transform.
func NewPreprocessor(numerical, categorical []string) *Preprocessor {
	return &Preprocessor{
		Numerical:   append([]string(nil), numerical...),
		Categorical: append([]string(nil), categorical...),
	}
}

// Fit learns scaling and encoding from ds.
func (p *Preprocessor) Fit(ds *dataset.Dataset) error {
	if len(p.Numerical)+len(p.Categorical) == 0 {
		return fmt.Errorf("no feature columns configured")
	}

	num, err := p.numericColumns(ds)
	if err != nil {
		return err
	}
	cat, err := p.categoricalColumns(ds)
	if err != nil {
		return err
	}

	p.Scaler.Fit(num)
	p.Encoder.Fit(cat)
	p.Fitted = true
	return nil
}

// Transform applies the fitted preprocessing to ds.
func (p *Preprocessor) Transform(ds *dataset.Dataset) (*Matrix, error) {
	if !p.Fitted {
		return nil, fmt.Errorf("preprocessor is not fitted")
	}

	num, err := p.numericColumns(ds)
	if err != nil {
		return nil, err
	}
	cat, err := p.categoricalColumns(ds)
	if err != nil {
		return nil, err
	}

	lookup := make([]map[string]int, len(p.Encoder.Categories))
	for j, cats := range p.Encoder.Categories {
		lookup[j] = make(map[string]int, len(cats))
		for k, c := range cats {
			lookup[j][c] = k
		}
	}

	width := len(p.Numerical) + p.Encoder.Width()
	rows := make([][]float64, ds.Len())
	for i := range rows {
		row := make([]float64, width)
		for j := range num {
			row[j] = p.Scaler.Scale(j, num[j][i])
		}
		offset := len(num)
		for j := range cat {
			if k, ok := lookup[j][cat[j][i]]; ok {
				row[offset+k] = 1
			}
			offset += len(p.Encoder.Categories[j])
		}
		rows[i] = row
	}

	return &Matrix{Columns: p.FeatureNames(), Rows: rows}, nil
}

// FeatureNames lists the output columns.
func (p *Preprocessor) FeatureNames() []string {
	names := append([]string(nil), p.Numerical...)
	for j, col := range p.Categorical {
		if j >= len(p.Encoder.Categories) {
			break
		}
		for _, c := range p.Encoder.Categories[j] {
			names = append(names, col+"_"+c)
		}
	}
	return names
}

func (p *Preprocessor) numericColumns(ds *dataset.Dataset) ([][]float64, error) {
	out := make([][]float64, len(p.Numerical))
	for j, name := range p.Numerical {
		col, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("numerical column %q not found", name)
		}
		values, err := col.Float64s()
		if err != nil {
			return nil, err
		}
		out[j] = values
	}
	return out, nil
}

func (p *Preprocessor) categoricalColumns(ds *dataset.Dataset) ([][]string, error) {
	out := make([][]string, len(p.Categorical))
	for j, name := range p.Categorical {
		col, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("categorical column %q not found", name)
		}
		out[j] = col.Strings()
	}
	return out, nil
}

// writeGob encodes v to path through a temporary sibling.
func writeGob(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}

// SavePreprocessor persists a fitted preprocessor.
func SavePreprocessor(path string, p *Preprocessor) error {
	if err := writeGob(path, p); err != nil {
		return fmt.Errorf("failed to save preprocessor %s: %w", path, err)
	}
	return nil
}

// LoadPreprocessor reads a preprocessor written by SavePreprocessor.
func LoadPreprocessor(path string) (*Preprocessor, error) {
	var p Preprocessor
	if err := readGob(path, &p); err != nil {
		return nil, fmt.Errorf("failed to load preprocessor %s: %w", path, err)
	}
	return &p, nil
}

// SaveMatrix persists a feature matrix.
func SaveMatrix(path string, m *Matrix) error {
	if err := writeGob(path, m); err != nil {
		return fmt.Errorf("failed to save features %s: %w", path, err)
	}
	return nil
}

// LoadMatrix reads a matrix written by SaveMatrix.
func LoadMatrix(path string) (*Matrix, error) {
	var m Matrix
	if err := readGob(path, &m); err != nil {
		return nil, fmt.Errorf("failed to load features %s: %w", path, err)
	}
	return &m, nil
}
