package telemetry

import (
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rul-pipeline/internal/evaluate"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/pipeline/stages"
)

func finishedRun(t *testing.T, passed bool) *pipeline.RunContext {
	t.Helper()
	rc := pipeline.NewRunContext("run-1", nil)

	bundle, err := evaluate.Score([]float64{100, 200, 300}, []float64{110, 190, 300})
	require.NoError(t, err)
	rc.Set(stages.ValueMetrics, bundle)

	max := 100.0
	if !passed {
		max = 1
	}
	rc.Set(stages.ValueGateReport, gate.Validate(bundle.Values(), gate.Thresholds{"MAE": {Min: 0, Max: max}}, gate.PolicyStrict))
	return rc
}

func TestMetrics_StageFinished(t *testing.T) {
	m := New("", nil)
	m.StageFinished(nil, pipeline.StageResult{Stage: "train", Status: pipeline.StatusSucceeded, Duration: 2 * time.Second})
	m.StageFinished(nil, pipeline.StageResult{Stage: "gate", Status: pipeline.StatusSkipped})

	assert.Equal(t, 2, testutil.CollectAndCount(m.stageDuration))
}

func TestMetrics_RunFinished(t *testing.T) {
	m := New("", nil)

	m.RunFinished(finishedRun(t, true), &pipeline.Result{Success: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatePassed))
	assert.InDelta(t, 20.0/3.0, testutil.ToFloat64(m.metricValue.WithLabelValues("MAE")), 1e-9)

	m.RunFinished(finishedRun(t, false), &pipeline.Result{Success: true})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.gatePassed))

	m.RunFinished(pipeline.NewRunContext("run-2", nil), &pipeline.Result{Success: false})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("succeeded")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rul_pipeline.prom")
	m := New(path, nil)

	m.RunFinished(finishedRun(t, true), &pipeline.Result{Success: true})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rul_pipeline_runs_total{status="succeeded"} 1`)
	assert.Contains(t, string(data), "rul_pipeline_gate_passed 1")
	assert.Contains(t, string(data), `rul_pipeline_metric_value{metric="R2"}`)

	assert.NoError(t, New("", nil).WriteTextfile())
}

func TestMetrics_RunFinishedSkipsNonFiniteMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rul_pipeline.prom")
	m := New(path, nil)

	rc := pipeline.NewRunContext("run-1", nil)
	rc.Set(stages.ValueMetrics, evaluate.NewBundle(map[string]float64{"MAE": 4, "MAPE": 12}))
	m.RunFinished(rc, &pipeline.Result{Success: true})
	assert.Equal(t, 2, testutil.CollectAndCount(m.metricValue))

	rc = pipeline.NewRunContext("run-2", nil)
	rc.Set(stages.ValueMetrics, evaluate.NewBundle(map[string]float64{"MAE": 5, "MAPE": math.Inf(1), "R2": math.NaN()}))
	m.RunFinished(rc, &pipeline.Result{Success: true})

	assert.Equal(t, 1, testutil.CollectAndCount(m.metricValue))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.metricValue.WithLabelValues("MAE")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `metric="MAPE"`)
	assert.NotContains(t, string(data), `metric="R2"`)
}

func TestMetrics_Handler(t *testing.T) {
	m := New("", nil)
	m.ObservePrediction(true)
	m.ObservePrediction(false)
	m.ObservePrediction(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rul_pipeline_predictions_total{status="rejected"} 2`)
	assert.Contains(t, rec.Body.String(), `rul_pipeline_predictions_total{status="ok"} 1`)
	assert.NotNil(t, m.Registry())
}
