package transform

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rul-pipeline/internal/dataset"
)

func batteryDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	cycle := make([]interface{}, n)
	voltage := make([]interface{}, n)
	cell := make([]interface{}, n)
	rul := make([]interface{}, n)
	for i := 0; i < n; i++ {
		cycle[i] = int64(i + 1)
		voltage[i] = 3.5 + float64(i%7)*0.1
		cell[i] = []string{"b1", "b2", "b3"}[i%3]
		rul[i] = int64(1000 - i)
	}

	ds := dataset.New()
	require.NoError(t, ds.AddColumn("cycle_index", dataset.Int, cycle))
	require.NoError(t, ds.AddColumn("max_voltage_discharge_v", dataset.Float, voltage))
	require.NoError(t, ds.AddColumn("cell", dataset.String, cell))
	require.NoError(t, ds.AddColumn("rul", dataset.Int, rul))
	return ds
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	train1, test1, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)
	train2, test2, err := TrainTestSplit(100, 0.2, 42)
	require.NoError(t, err)

	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)
	assert.Len(t, test1, 20)
	assert.Len(t, train1, 80)

	_, test3, err := TrainTestSplit(100, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test1, test3)
}

func TestTrainTestSplit_Partition(t *testing.T) {
	train, test, err := TrainTestSplit(11, 0.25, 1)
	require.NoError(t, err)
	assert.Len(t, test, 3, "test size rounds up")

	all := append(append([]int{}, train...), test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}
}

func TestTrainTestSplit_InvalidRatio(t *testing.T) {
	for _, size := range []float64{0, 1, -0.1, math.NaN()} {
		_, _, err := TrainTestSplit(10, size, 1)
		assert.Error(t, err, "test size %v", size)
	}
	_, _, err := TrainTestSplit(1, 0.5, 1)
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	ds := batteryDataset(t, 30)
	cfg := Config{
		Numerical:   []string{"cycle_index", "max_voltage_discharge_v"},
		Categorical: []string{"cell"},
		Target:      "rul",
		TestSize:    0.2,
		Seed:        42,
	}

	out, pre, err := Apply(ds, cfg)
	require.NoError(t, err)

	assert.Len(t, out.XTrain.Rows, 24)
	assert.Len(t, out.XTest.Rows, 6)
	assert.Len(t, out.YTrain, 24)
	assert.Len(t, out.YTest, 6)
	assert.Equal(t, []string{"cycle_index", "max_voltage_discharge_v", "cell_b1", "cell_b2", "cell_b3"}, out.XTrain.Columns)
	assert.Equal(t, out.XTrain.Columns, pre.FeatureNames())

	// Scaled training columns are centered.
	for j := 0; j < 2; j++ {
		sum := 0.0
		for _, row := range out.XTrain.Rows {
			sum += row[j]
		}
		assert.InDelta(t, 0, sum/float64(len(out.XTrain.Rows)), 1e-9)
	}

	// Each row has exactly one active category.
	for _, row := range out.XTest.Rows {
		assert.Equal(t, 1.0, row[2]+row[3]+row[4])
	}

	again, _, err := Apply(ds, cfg)
	require.NoError(t, err)
	assert.Equal(t, out.YTest, again.YTest)
	assert.Equal(t, out.XTest.Rows, again.XTest.Rows)
}

func TestApply_TargetRowsFollowFeatures(t *testing.T) {
	ds := batteryDataset(t, 20)
	out, pre, err := Apply(ds, Config{Numerical: []string{"cycle_index"}, Target: "rul", TestSize: 0.3, Seed: 3})
	require.NoError(t, err)

	// rul = 1001 - cycle_index, so unscaling the feature recovers the target.
	for i, row := range out.XTrain.Rows {
		cycle := row[0]*pre.Scaler.Std[0] + pre.Scaler.Mean[0]
		assert.InDelta(t, 1001-cycle, out.YTrain[i], 1e-9)
	}
}

func TestApply_Errors(t *testing.T) {
	ds := batteryDataset(t, 10)

	_, _, err := Apply(ds, Config{Numerical: []string{"cycle_index"}, TestSize: 0.2})
	assert.Error(t, err, "missing target")

	_, _, err = Apply(ds, Config{Numerical: []string{"cycle_index"}, Target: "soh", TestSize: 0.2})
	assert.Error(t, err, "unknown target")

	_, _, err = Apply(ds, Config{Numerical: []string{"nope"}, Target: "rul", TestSize: 0.2})
	assert.Error(t, err, "unknown feature")

	_, _, err = Apply(ds, Config{Numerical: []string{"cell"}, Target: "rul", TestSize: 0.2})
	assert.Error(t, err, "string column declared numerical")

	_, _, err = Apply(ds, Config{Target: "rul", TestSize: 0.2})
	assert.Error(t, err, "no features")
}

func TestOneHot_UnknownCategoryIsZero(t *testing.T) {
	pre := NewPreprocessor(nil, []string{"cell"})
	train := dataset.New()
	require.NoError(t, train.AddColumn("cell", dataset.String, []interface{}{"a", "b"}))
	require.NoError(t, pre.Fit(train))

	test := dataset.New()
	require.NoError(t, test.AddColumn("cell", dataset.String, []interface{}{"z"}))
	m, err := pre.Transform(test)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0}}, m.Rows)
}

func TestStandardScaler_ConstantColumn(t *testing.T) {
	var s StandardScaler
	s.Fit([][]float64{{5, 5, 5}})
	assert.Equal(t, 1.0, s.Std[0])
	assert.Equal(t, 0.0, s.Scale(0, 5))
}

func TestSaveAndReload(t *testing.T) {
	ds := batteryDataset(t, 25)
	out, pre, err := Apply(ds, Config{
		Numerical:   []string{"cycle_index"},
		Categorical: []string{"cell"},
		Target:      "rul",
		TestSize:    0.2,
		Seed:        42,
	})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "data_transformation")
	paths, err := out.Save(dir, "rul", pre)
	require.NoError(t, err)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	xTest, err := LoadMatrix(paths[TestFeaturesFile])
	require.NoError(t, err)
	assert.Equal(t, out.XTest, xTest)

	yTest, err := ReadTarget(paths[TestTargetFile], "rul")
	require.NoError(t, err)
	assert.Equal(t, out.YTest, yTest)

	loaded, err := LoadPreprocessor(paths[PreprocessorFile])
	require.NoError(t, err)
	again, err := loaded.Transform(ds.Drop("rul"))
	require.NoError(t, err)
	assert.Equal(t, pre.FeatureNames(), again.Columns)

	_, err = ReadTarget(paths[TestTargetFile], "soh")
	assert.Error(t, err)
}
