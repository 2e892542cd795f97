package transform

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"rul-pipeline/internal/dataset"
)

// Artifact file names written under the transformation root directory.
const (
	TrainFeaturesFile = "train.gob"
	TestFeaturesFile  = "test.gob"
	TrainTargetFile   = "y_train.csv"
	TestTargetFile    = "y_test.csv"
	PreprocessorFile  = "preprocessor.gob"
)

// Config declares what to transform.
type Config struct {
	Numerical   []string
	Categorical []string
	Target      string
	TestSize    float64
	Seed        int64
}

// Output holds the four correlated results of a transformation.
type Output struct {
	XTrain *Matrix
	XTest  *Matrix
	YTrain []float64
	YTest  []float64
}

// Apply splits ds, fits the preprocessor on the training rows and transforms
// both partitions.
func Apply(ds *dataset.Dataset, cfg Config) (*Output, *Preprocessor, error) {
	if cfg.Target == "" {
		return nil, nil, fmt.Errorf("target column is not configured")
	}
	targetCol, ok := ds.Column(cfg.Target)
	if !ok {
		return nil, nil, fmt.Errorf("target column %q not found", cfg.Target)
	}
	target, err := targetCol.Float64s()
	if err != nil {
		return nil, nil, fmt.Errorf("target column: %w", err)
	}

	trainIdx, testIdx, err := TrainTestSplit(ds.Len(), cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	features := ds.Drop(cfg.Target)
	trainDS, err := features.Take(trainIdx)
	if err != nil {
		return nil, nil, err
	}
	testDS, err := features.Take(testIdx)
	if err != nil {
		return nil, nil, err
	}

	pre := NewPreprocessor(cfg.Numerical, cfg.Categorical)
	if err := pre.Fit(trainDS); err != nil {
		return nil, nil, err
	}
	xTrain, err := pre.Transform(trainDS)
	if err != nil {
		return nil, nil, err
	}
	xTest, err := pre.Transform(testDS)
	if err != nil {
		return nil, nil, err
	}

	return &Output{
		XTrain: xTrain,
		XTest:  xTest,
		YTrain: pick(target, trainIdx),
		YTest:  pick(target, testIdx),
	}, pre, nil
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = values[r]
	}
	return out
}

// Save writes the output and the preprocessor under dir and returns the
// written paths keyed by file name.
func (o *Output) Save(dir, target string, pre *Preprocessor) (map[string]string, error) {
	paths := map[string]string{
		TrainFeaturesFile: filepath.Join(dir, TrainFeaturesFile),
		TestFeaturesFile:  filepath.Join(dir, TestFeaturesFile),
		TrainTargetFile:   filepath.Join(dir, TrainTargetFile),
		TestTargetFile:    filepath.Join(dir, TestTargetFile),
		PreprocessorFile:  filepath.Join(dir, PreprocessorFile),
	}

	if err := SaveMatrix(paths[TrainFeaturesFile], o.XTrain); err != nil {
		return nil, err
	}
	if err := SaveMatrix(paths[TestFeaturesFile], o.XTest); err != nil {
		return nil, err
	}
	if err := WriteTarget(paths[TrainTargetFile], target, o.YTrain); err != nil {
		return nil, err
	}
	if err := WriteTarget(paths[TestTargetFile], target, o.YTest); err != nil {
		return nil, err
	}
	if err := SavePreprocessor(paths[PreprocessorFile], pre); err != nil {
		return nil, err
	}
	return paths, nil
}

// WriteTarget writes a single-column CSV with a header.
func WriteTarget(path, column string, values []float64) error {
	ds := dataset.New()
	col := make([]interface{}, len(values))
	for i, v := range values {
		col[i] = v
	}
	if err := ds.AddColumn(column, dataset.Float, col); err != nil {
		return err
	}
	if err := ds.WriteCSV(path); err != nil {
		return fmt.Errorf("failed to write target %s: %w", path, err)
	}
	return nil
}

// ReadTarget reads the named column of a target CSV.
func ReadTarget(path, column string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open target %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read target %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("target %s has no header", path)
	}

	idx := -1
	for j, name := range rows[0] {
		if name == column {
			idx = j
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("target %s has no column %q", path, column)
	}

	out := make([]float64, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if row[idx] == "" {
			out = append(out, math.NaN())
			continue
		}
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return nil, fmt.Errorf("target %s row %d: %w", path, i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}
