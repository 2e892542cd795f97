package storage_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"rul-pipeline/internal/config"
	"rul-pipeline/internal/evaluate"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/pipeline/stages"
	"rul-pipeline/internal/storage"
)

// MockRunStore is a mock implementation of the RunStore interface for testing
type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRunStore) Health() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRunStore) SaveRun(run *storage.Run) error {
	args := m.Called(run)
	return args.Error(0)
}

func (m *MockRunStore) UpdateRun(run *storage.Run) error {
	args := m.Called(run)
	return args.Error(0)
}

func (m *MockRunStore) GetRun(id string) (*storage.Run, error) {
	args := m.Called(id)
	if run, ok := args.Get(0).(*storage.Run); ok {
		return run, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRunStore) ListRuns(limit, offset int) ([]*storage.Run, int, error) {
	args := m.Called(limit, offset)
	runs, _ := args.Get(0).([]*storage.Run)
	return runs, args.Int(1), args.Error(2)
}

func storeFactory(store storage.RunStore) storage.StorageFactory {
	return func(storage.StorageConfig) (storage.RunStore, error) { return store, nil }
}

func TestRegistry(t *testing.T) {
	r := storage.NewRegistry()
	store := &MockRunStore{}
	r.Register("mock", storeFactory(store))
	r.Register("another", storeFactory(nil))

	assert.True(t, r.Has("mock"))
	assert.False(t, r.Has("mysql"))
	assert.Equal(t, []string{"another", "mock"}, r.Types())

	got, err := r.Create("mock", storage.GenericConfig{})
	require.NoError(t, err)
	assert.Same(t, store, got)

	_, err = r.Create("mysql", storage.GenericConfig{})
	assert.Error(t, err)
}

func TestGenericConfig(t *testing.T) {
	gc := storage.GenericConfig{
		"type":              "sqlite",
		"connection_string": "postgres://u@h/db",
		"path":              "/tmp/x.db",
		"port":              5432,
	}
	assert.NoError(t, gc.Validate())
	assert.Equal(t, "sqlite", gc.GetType())
	assert.Equal(t, "postgres://u@h/db", gc.GetConnectionString())
	assert.Equal(t, "/tmp/x.db", gc.String("path"))
	assert.Equal(t, 5432, gc.Int("port"))
	assert.Equal(t, "", gc.String("missing"))
	assert.Equal(t, "unknown", storage.GenericConfig{}.GetType())
}

func TestNewRunStore(t *testing.T) {
	cfg := config.Load()

	cfg.DatabaseType = "none"
	store, err := storage.NewRunStore(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.DatabaseType = "oracle"
	_, err = storage.NewRunStore(cfg)
	assert.Error(t, err)
}

func TestEncodeDecodeRun(t *testing.T) {
	run := &storage.Run{
		ID:      "r1",
		Stages:  []storage.StageRecord{{Name: "ingest", Status: "succeeded", DurationMS: 12}},
		Metrics: map[string]float64{"MAE": 12.5, "MAPE": math.Inf(1)},
	}
	stagesJSON, metricsJSON, err := storage.EncodeRun(run)
	require.NoError(t, err)
	assert.NotContains(t, metricsJSON, "MAPE")

	back := &storage.Run{ID: "r1"}
	require.NoError(t, storage.DecodeRun(back, stagesJSON, metricsJSON))
	assert.Equal(t, run.Stages, back.Stages)
	assert.Equal(t, map[string]float64{"MAE": 12.5}, back.Metrics)

	empty, emptyMetrics, err := storage.EncodeRun(&storage.Run{})
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
	assert.Equal(t, "{}", emptyMetrics)

	assert.Error(t, storage.DecodeRun(&storage.Run{}, "{", ""))
}

func TestRecorder(t *testing.T) {
	store := &MockRunStore{}
	rc := pipeline.NewRunContext("run-42", nil)
	rc.Set(stages.ValueMetrics, evaluate.NewBundle(map[string]float64{"MAE": 5}))
	rc.Set(stages.ValueGateReport, gate.Validate(map[string]float64{"MAE": 5},
		gate.Thresholds{"MAE": {Min: 0, Max: 10}}, gate.PolicyStrict))

	store.On("SaveRun", mock.MatchedBy(func(r *storage.Run) bool {
		return r.ID == "run-42" && r.Status == storage.RunStatusRunning
	})).Return(nil).Once()
	store.On("UpdateRun", mock.Anything).Return(nil)

	rec := storage.NewRecorder(store, nil)
	rec.Begin(rc)
	rec.StageFinished(rc, pipeline.StageResult{Stage: "ingest", Status: pipeline.StatusSucceeded, Duration: 1500 * time.Millisecond})
	rec.RunFinished(rc, &pipeline.Result{RunID: "run-42", Success: true})

	store.AssertExpectations(t)
	last := store.Calls[len(store.Calls)-1].Arguments.Get(0).(*storage.Run)
	assert.Equal(t, storage.RunStatusSucceeded, last.Status)
	require.Len(t, last.Stages, 1)
	assert.Equal(t, int64(1500), last.Stages[0].DurationMS)
	assert.Equal(t, 5.0, last.Metrics["MAE"])
	require.NotNil(t, last.Passed)
	assert.True(t, *last.Passed)
	assert.NotNil(t, last.FinishedAt)
}

func TestRecorder_StoreFailuresAreSwallowed(t *testing.T) {
	store := &MockRunStore{}
	store.On("SaveRun", mock.Anything).Return(fmt.Errorf("disk full"))
	store.On("UpdateRun", mock.Anything).Return(fmt.Errorf("disk full"))

	rc := pipeline.NewRunContext("run-1", nil)
	rec := storage.NewRecorder(store, nil)
	assert.NotPanics(t, func() {
		rec.Begin(rc)
		rec.RunFinished(rc, &pipeline.Result{Success: false, Error: "stage 'ingest': boom"})
	})

	last := store.Calls[len(store.Calls)-1].Arguments.Get(0).(*storage.Run)
	assert.Equal(t, storage.RunStatusFailed, last.Status)
	assert.Equal(t, "stage 'ingest': boom", last.Error)
	assert.Nil(t, last.Passed)
}

func TestRecorder_IgnoresEventsBeforeBegin(t *testing.T) {
	store := &MockRunStore{}
	rec := storage.NewRecorder(store, nil)
	rc := pipeline.NewRunContext("r", nil)

	rec.StageFinished(rc, pipeline.StageResult{Stage: "ingest"})
	rec.RunFinished(rc, &pipeline.Result{})
	store.AssertNotCalled(t, "UpdateRun", mock.Anything)
}
