package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rul-pipeline/internal/common/errors"
)

// linearData returns y = 3*x0 - 2*x1 + 5 on a small grid.
func linearData() ([][]float64, []float64) {
	var X [][]float64
	var y []float64
	for i := 0; i < 10; i++ {
		for j := 0; j < 5; j++ {
			x0, x1 := float64(i), float64(j)
			X = append(X, []float64{x0, x1})
			y = append(y, 3*x0-2*x1+5)
		}
	}
	return X, y
}

func testParams() Params {
	p := DefaultParams()
	p.NEstimators = 50
	p.MaxDepth = 4
	p.RandomState = 42
	return p
}

func mse(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s / float64(len(a))
}

func TestGBRegressor_FitsLinearSignal(t *testing.T) {
	X, y := linearData()

	m, err := NewGBRegressor(testParams(), WithFeatureNames([]string{"x0", "x1"}))
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y))

	pred, err := m.Predict(X)
	require.NoError(t, err)
	assert.Less(t, mse(y, pred), 1.0)
	assert.Len(t, m.Trees, 50)
	assert.Equal(t, 2, m.NumFeatures)
}

func TestGBRegressor_PseudoHuber(t *testing.T) {
	X, y := linearData()
	p := testParams()
	p.Objective = ObjectivePseudoHuberError
	p.NEstimators = 200
	p.LearningRate = 0.1
	p.RegLambda = 10
	p.MinChildWeight = 0

	m, err := NewGBRegressor(p)
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y))

	pred, err := m.Predict(X)
	require.NoError(t, err)

	baseline := make([]float64, len(y))
	for i := range baseline {
		baseline[i] = m.BaseScore
	}
	assert.Less(t, mse(y, pred), mse(y, baseline))
}

func TestGBRegressor_Deterministic(t *testing.T) {
	X, y := linearData()
	p := testParams()
	p.Subsample = 0.7
	p.ColsampleBytree = 0.5

	a, err := NewGBRegressor(p)
	require.NoError(t, err)
	require.NoError(t, a.Fit(X, y))

	b, err := NewGBRegressor(p)
	require.NoError(t, err)
	require.NoError(t, b.Fit(X, y))

	pa, _ := a.Predict(X)
	pb, _ := b.Predict(X)
	assert.Equal(t, pa, pb)
}

func TestGBRegressor_RejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		X    [][]float64
		y    []float64
	}{
		{"empty", nil, nil},
		{"row mismatch", [][]float64{{1}, {2}}, []float64{1}},
		{"ragged", [][]float64{{1, 2}, {3}}, []float64{1, 2}},
		{"nan feature", [][]float64{{1}, {math.NaN()}}, []float64{1, 2}},
		{"inf feature", [][]float64{{math.Inf(1)}, {1}}, []float64{1, 2}},
		{"nan target", [][]float64{{1}, {2}}, []float64{1, math.NaN()}},
		{"no columns", [][]float64{{}, {}}, []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewGBRegressor(testParams())
			require.NoError(t, err)

			err = m.Fit(tt.X, tt.y)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeTraining))
			assert.Nil(t, m.Trees)
		})
	}
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(p *Params)
		want   string
	}{
		{"objective", func(p *Params) { p.Objective = "binary:logistic" }, "objective"},
		{"booster", func(p *Params) { p.Booster = "dart" }, "booster"},
		{"estimators", func(p *Params) { p.NEstimators = 0 }, "n_estimators"},
		{"learning rate", func(p *Params) { p.LearningRate = 0 }, "learning_rate"},
		{"subsample", func(p *Params) { p.Subsample = 1.5 }, "subsample"},
		{"colsample", func(p *Params) { p.ColsampleBytree = math.NaN() }, "colsample_bytree"},
		{"gamma", func(p *Params) { p.Gamma = -1 }, "gamma"},
		{"lambda", func(p *Params) { p.RegLambda = -0.1 }, "reg_lambda"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			_, err = NewGBRegressor(p)
			assert.True(t, errors.IsType(err, errors.ErrTypeTraining))
		})
	}
}

func TestParams_Map(t *testing.T) {
	m := testParams().Map()
	assert.Len(t, m, 13)
	assert.Equal(t, "reg:squarederror", m["objective"])
	assert.Equal(t, "50", m["n_estimators"])
	assert.Equal(t, "0.3", m["learning_rate"])
	assert.Equal(t, "42", m["random_state"])
}

func TestSaveLoad(t *testing.T) {
	X, y := linearData()
	m, err := NewGBRegressor(testParams(), WithFeatureNames([]string{"x0", "x1"}))
	require.NoError(t, err)
	require.NoError(t, m.Fit(X, y))

	path := filepath.Join(t.TempDir(), "model_trainer", "model.gob")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.FeatureNames, loaded.FeatureNames)
	assert.Equal(t, m.Params, loaded.Params)

	want, _ := m.Predict(X)
	got, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = loaded.Predict([][]float64{{1}})
	assert.Error(t, err)
}

func TestSave_UntrainedWritesNothing(t *testing.T) {
	m, err := NewGBRegressor(testParams())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.gob")
	require.Error(t, m.Save(path))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
