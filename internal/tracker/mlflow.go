package tracker

import (
	"context"
	"math"
	"sort"
	"time"

	"rul-pipeline/internal/common/errors"
	commonhttp "rul-pipeline/internal/common/http"
)

const (
	pathCreateRun = "/api/2.0/mlflow/runs/create"
	pathLogBatch  = "/api/2.0/mlflow/runs/log-batch"
	pathUpdateRun = "/api/2.0/mlflow/runs/update"
)

// MLflow logs runs through the MLflow tracking REST API.
type MLflow struct {
	client       *commonhttp.JSONClient
	experimentID string
}

// MLflowOption configures an MLflow tracker.
type MLflowOption func(*MLflow)

// WithToken sets a bearer token on every request.
func WithToken(token string) MLflowOption {
	return func(m *MLflow) {
		if token != "" {
			m.client.Headers = map[string]string{"Authorization": "Bearer " + token}
		}
	}
}

// NewMLflow creates a tracker for the server at trackingURI.
func NewMLflow(trackingURI, experimentID string, timeout time.Duration, opts ...MLflowOption) *MLflow {
	if experimentID == "" {
		experimentID = "0"
	}
	m := &MLflow{
		client:       commonhttp.NewJSONClient(trackingURI, commonhttp.WithTimeout(timeout)),
		experimentID: experimentID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type createRunRequest struct {
	ExperimentID string     `json:"experiment_id"`
	StartTime    int64      `json:"start_time"`
	RunName      string     `json:"run_name,omitempty"`
	Tags         []keyValue `json:"tags,omitempty"`
}

type createRunResponse struct {
	Run struct {
		Info struct {
			RunID string `json:"run_id"`
		} `json:"info"`
	} `json:"run"`
}

type logBatchRequest struct {
	RunID   string     `json:"run_id"`
	Metrics []metric   `json:"metrics"`
	Params  []keyValue `json:"params"`
}

type updateRunRequest struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	EndTime int64  `json:"end_time"`
}

// LogRun creates a run, logs params and finite metrics in one batch, and
// marks the run finished. A failed batch marks the run failed.
func (m *MLflow) LogRun(ctx context.Context, run Run) error {
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	ended := run.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}

	var created createRunResponse
	err := m.client.Post(ctx, pathCreateRun, createRunRequest{
		ExperimentID: m.experimentID,
		StartTime:    started.UnixMilli(),
		RunName:      run.Name,
		Tags:         sortedPairs(run.Tags),
	}, &created)
	if err != nil {
		return errors.TrackerLoggingError("failed to create run", err)
	}
	runID := created.Run.Info.RunID
	if runID == "" {
		return errors.TrackerLoggingError("tracker returned no run id", nil)
	}

	batch := logBatchRequest{
		RunID:   runID,
		Metrics: finiteMetrics(run.Metrics, ended.UnixMilli()),
		Params:  sortedPairs(run.Params),
	}
	status := "FINISHED"
	batchErr := m.client.Post(ctx, pathLogBatch, batch, nil)
	if batchErr != nil {
		status = "FAILED"
	}

	err = m.client.Post(ctx, pathUpdateRun, updateRunRequest{
		RunID:   runID,
		Status:  status,
		EndTime: ended.UnixMilli(),
	}, nil)
	if batchErr != nil {
		return errors.TrackerLoggingError("failed to log params and metrics", batchErr).WithContext("run_id", runID)
	}
	if err != nil {
		return errors.TrackerLoggingError("failed to finish run", err).WithContext("run_id", runID)
	}
	return nil
}

func sortedPairs(m map[string]string) []keyValue {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]keyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, keyValue{Key: k, Value: m[k]})
	}
	return out
}

// finiteMetrics drops values JSON cannot carry.
func finiteMetrics(m map[string]float64, ts int64) []metric {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]metric, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		out = append(out, metric{Key: k, Value: v, Timestamp: ts})
	}
	return out
}
