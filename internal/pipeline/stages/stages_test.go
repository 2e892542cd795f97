package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/configstore"
	"rul-pipeline/internal/evaluate"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/pipeline"
	perrors "rul-pipeline/internal/pipeline/errors"
	"rul-pipeline/internal/tracker"
)

const configYAML = `
artifacts_root: {{root}}

data_ingestion:
  root_dir: {{root}}/data_ingestion
  uri: {{raw}}
  database_name: battery
  collection_name: battery_rul

data_validation:
  root_dir: {{root}}/data_validation
  STATUS_FILE: {{root}}/data_validation/status.txt
  data_dir: {{root}}/data_ingestion/battery_rul.csv
  halt_on_failure: {{halt}}

data_transformation:
  root_dir: {{root}}/data_transformation
  data_path: {{root}}/data_ingestion/battery_rul.csv

model_trainer:
  root_dir: {{root}}/model_trainer
  train_data_path: {{root}}/data_transformation/train.gob
  test_data_path: {{root}}/data_transformation/test.gob
  model_name: model.gob

model_evaluation:
  root_dir: {{root}}/model_evaluation
  test_data_path: {{root}}/data_transformation/test.gob
  test_target_variable: {{root}}/data_transformation/y_test.csv
  model_path: {{root}}/model_trainer/model.gob
  metric_file_name: {{root}}/model_evaluation/metrics.json
  run_name: test-run

metrics_validation:
  root_dir: {{root}}/metrics_validation
  metric_file_name: {{root}}/model_evaluation/metrics.json
  validation_status_file: {{root}}/metrics_validation/validation_status.json
`

const paramsYAML = `
XGBRegressor:
  objective: reg:squarederror
  booster: gbtree
  n_estimators: 30
  learning_rate: 0.3
  max_depth: 3
  min_child_weight: 1
  gamma: 0
  subsample: 1.0
  colsample_bytree: 1.0
  reg_alpha: 0
  reg_lambda: 1
  random_state: 42
  scale_pos_weight: 1
`

const schemaYAML = `
COLUMNS:
  cycle_index: {{cycle_type}}
  discharge_time_s: float64
  decrement_3_6_3_4v_s: float64
  max_voltage_discharge_v: float64
  min_voltage_charge_v: float64
  time_at_4_15v_s: float64
  time_constant_current_s: float64
  charging_time_s: float64
  rul: int64

TARGET_COLUMN:
  name: rul
`

const metricsYAML = `
METRICS:
  MAE:
    min: 0
    max: {{mae_max}}
  R2:
    min: -100
    max: 1
`

type fixture struct {
	dir   string
	root  string
	raw   string
	paths configstore.Paths
	vars  map[string]string
}

func newFixture(t *testing.T, rows int) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:  dir,
		root: filepath.Join(dir, "artifacts"),
		raw:  filepath.Join(dir, "raw", "battery_rul.csv"),
		paths: configstore.Paths{
			Config:  filepath.Join(dir, "config", "config.yaml"),
			Params:  filepath.Join(dir, "params.yaml"),
			Schema:  filepath.Join(dir, "schema.yaml"),
			Metrics: filepath.Join(dir, "metrics_thresholds.yaml"),
		},
		vars: map[string]string{"halt": "false", "cycle_type": "float64", "mae_max": "1000"},
	}
	f.writeRaw(t, rows)
	return f
}

func (f *fixture) writeRaw(t *testing.T, rows int) {
	t.Helper()
	var b strings.Builder
	b.WriteString("_id,cycle_index,discharge_time_s,decrement_3_6_3_4v_s,max_voltage_discharge_v," +
		"min_voltage_charge_v,time_at_4_15v_s,time_constant_current_s,charging_time_s,rul\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "id%d,%.1f,%.2f,%.2f,%.3f,%.3f,%.2f,%.2f,%.2f,%d\n",
			i, float64(i+1), 2595.3-float64(i)*12.5, 1151.49-float64(i)*3.1, 3.67+float64(i%7)*0.01,
			3.21+float64(i%5)*0.01, 5460.0-float64(i)*20.25, 6755.01-float64(i)*15.5, 10777.82-float64(i)*30.75,
			1112-i*10)
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.raw), 0o755))
	require.NoError(t, os.WriteFile(f.raw, []byte(b.String()), 0o644))
}

func (f *fixture) render(content string) string {
	content = strings.ReplaceAll(content, "{{root}}", f.root)
	content = strings.ReplaceAll(content, "{{raw}}", f.raw)
	for k, v := range f.vars {
		content = strings.ReplaceAll(content, "{{"+k+"}}", v)
	}
	return content
}

func (f *fixture) deps(t *testing.T, tr tracker.Tracker) Deps {
	t.Helper()
	for path, content := range map[string]string{
		f.paths.Config:  configYAML,
		f.paths.Params:  paramsYAML,
		f.paths.Schema:  schemaYAML,
		f.paths.Metrics: metricsYAML,
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(f.render(content)), 0o644))
	}
	store, err := configstore.Load(f.paths)
	require.NoError(t, err)
	return Deps{Store: store, Tracker: tr}
}

type recordingTracker struct {
	mu   sync.Mutex
	runs []tracker.Run
	err  error
}

func (r *recordingTracker) LogRun(_ context.Context, run tracker.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func execute(t *testing.T, stages []pipeline.Stage) (*pipeline.RunContext, *pipeline.Result, error) {
	t.Helper()
	rc := pipeline.NewRunContext("run-test", nil)
	res, err := pipeline.NewOrchestrator(nil).Execute(context.Background(), rc, stages...)
	return rc, res, err
}

func TestPipeline_EndToEnd(t *testing.T) {
	f := newFixture(t, 80)
	tr := &recordingTracker{}

	rc, res, err := execute(t, Build(f.deps(t, tr)))
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, res.StageResults, len(Names))
	for i, sr := range res.StageResults {
		assert.Equal(t, Names[i], sr.Stage)
		assert.Equal(t, pipeline.StatusSucceeded, sr.Status, sr.Stage)
	}

	for _, path := range []string{
		filepath.Join(f.root, "data_ingestion", "battery_rul.csv"),
		filepath.Join(f.root, "data_validation", "status.txt"),
		filepath.Join(f.root, "data_transformation", "train.gob"),
		filepath.Join(f.root, "data_transformation", "y_test.csv"),
		filepath.Join(f.root, "data_transformation", "preprocessor.gob"),
		filepath.Join(f.root, "model_trainer", "model.gob"),
		filepath.Join(f.root, "model_evaluation", "metrics.json"),
		filepath.Join(f.root, "metrics_validation", "validation_status.json"),
	} {
		assert.FileExists(t, path)
	}

	status, err := os.ReadFile(filepath.Join(f.root, "data_validation", "status.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(status), "Validation status: true")
	assert.Contains(t, string(status), "Data type validation status: true")

	v, ok := rc.Get(ValueMetrics)
	require.True(t, ok)
	bundle := v.(*evaluate.Bundle)
	assert.ElementsMatch(t, evaluate.Names, bundle.Names())

	report, err := gate.Load(filepath.Join(f.root, "metrics_validation", "validation_status.json"))
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.Equal(t, gate.StatusNotAvailable, report.Metrics[evaluate.MAPE].Status)

	require.Len(t, tr.runs, 1)
	assert.Equal(t, "test-run", tr.runs[0].Name)
	assert.Equal(t, "run-test", tr.runs[0].Tags["run_id"])
	assert.Contains(t, tr.runs[0].Metrics, evaluate.MAE)
	assert.Equal(t, "30", tr.runs[0].Params["n_estimators"])
}

func TestPipeline_FailingGateIsNotAnError(t *testing.T) {
	f := newFixture(t, 60)
	f.vars["mae_max"] = "0.000001"

	rc, res, err := execute(t, Build(f.deps(t, nil)))
	require.NoError(t, err)
	assert.True(t, res.Success)

	v, ok := rc.Get(ValueGateReport)
	require.True(t, ok)
	report := v.(*gate.Report)
	assert.False(t, report.Passed())
	assert.Equal(t, []string{evaluate.MAE}, report.Failed())

	sr, _ := res.Stage(NameGate)
	assert.Contains(t, sr.Message, "passed: false")
}

func TestPipeline_TrackerFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, 60)
	tr := &recordingTracker{err: errors.TrackerLoggingError("mlflow down", nil)}

	_, res, err := execute(t, Build(f.deps(t, tr)))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, tr.runs, 1)
}

func TestValidateStage_SchemaMismatch(t *testing.T) {
	t.Run("continues by default", func(t *testing.T) {
		f := newFixture(t, 40)
		f.vars["cycle_type"] = "int64"

		rc, res, err := execute(t, Build(f.deps(t, nil)))
		require.NoError(t, err)
		assert.True(t, res.Success)

		status, err := os.ReadFile(filepath.Join(f.root, "data_validation", "status.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(status), "Data type validation status: false")
		assert.Contains(t, string(status), "cycle_index: expected int64, got float64")

		_, ok := rc.Get(ValueSchemaResult)
		assert.True(t, ok)
	})

	t.Run("halts when configured", func(t *testing.T) {
		f := newFixture(t, 40)
		f.vars["cycle_type"] = "int64"
		f.vars["halt"] = "true"

		_, res, err := execute(t, Build(f.deps(t, nil)))
		require.Error(t, err)

		se, ok := perrors.AsStageError(err)
		require.True(t, ok)
		assert.Equal(t, NameValidate, se.Stage)
		assert.True(t, errors.IsType(err, errors.ErrTypeSchemaMismatch))

		for _, name := range []string{NameTransform, NameTrain, NameEvaluate, NameGate} {
			sr, _ := res.Stage(name)
			assert.Equal(t, pipeline.StatusSkipped, sr.Status, name)
		}
		assert.NoFileExists(t, filepath.Join(f.root, "model_trainer", "model.gob"))
	})
}

func TestIngestStage_EmptySource(t *testing.T) {
	f := newFixture(t, 0)

	_, res, err := execute(t, Build(f.deps(t, nil)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeEmptyResult))
	assert.NoFileExists(t, filepath.Join(f.root, "data_ingestion", "battery_rul.csv"))

	sr, _ := res.Stage(NameIngest)
	assert.Equal(t, pipeline.StatusFailed, sr.Status)
}

func TestSelect(t *testing.T) {
	f := newFixture(t, 50)
	deps := f.deps(t, nil)

	all, err := Select(deps, "")
	require.NoError(t, err)
	assert.Len(t, all, len(Names))

	_, err = Select(deps, "deploy")
	var unknown *perrors.UnknownStageError
	assert.ErrorAs(t, err, &unknown)

	// single stages pick up what earlier runs left on disk
	for _, name := range Names {
		one, err := Select(deps, name)
		require.NoError(t, err)
		require.Len(t, one, 1)

		_, res, err := execute(t, one)
		require.NoError(t, err, name)
		assert.True(t, res.Success)
	}
}

func TestTrainStage_MissingInputs(t *testing.T) {
	f := newFixture(t, 50)
	one, err := Select(f.deps(t, nil), NameTrain)
	require.NoError(t, err)

	_, _, err = execute(t, one)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTraining))
}

func TestStages_MissingIngestedDatasetIsNotASourceOutage(t *testing.T) {
	f := newFixture(t, 50)
	deps := f.deps(t, nil)

	for _, name := range []string{NameValidate, NameTransform} {
		one, err := Select(deps, name)
		require.NoError(t, err)

		_, res, err := execute(t, one)
		require.Error(t, err, name)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound), name)
		assert.False(t, errors.IsType(err, errors.ErrTypeSourceUnavailable), name)
		assert.Contains(t, err.Error(), "ingested dataset", name)

		sr, _ := res.Stage(name)
		assert.Equal(t, pipeline.StatusFailed, sr.Status)
	}
}
