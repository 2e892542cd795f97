// Package telemetry records pipeline runs as Prometheus metrics.
//
// Batch runs are short lived, so their metrics are written to a
// node-exporter textfile after each run. The prediction server exposes the
// same registry on /metrics.
package telemetry

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/evaluate"
	"rul-pipeline/internal/gate"
	"rul-pipeline/internal/pipeline"
	"rul-pipeline/internal/pipeline/stages"
)

const namespace = "rul_pipeline"

// Metrics owns a registry and the pipeline collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry
	textfile string
	logger   logging.Logger

	stageDuration *prometheus.HistogramVec
	runsTotal     *prometheus.CounterVec
	metricValue   *prometheus.GaugeVec
	gatePassed    prometheus.Gauge
	predictions   *prometheus.CounterVec
}

// New creates the collectors. When textfile is not empty, every finished
// run rewrites it.
func New(textfile string, logger logging.Logger) *Metrics {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		textfile: textfile,
		logger:   logger,

		// Labels: stage, status (succeeded, failed, skipped)
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"stage", "status"}),

		// Labels: status (succeeded, failed)
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total pipeline runs by outcome",
		}, []string{"status"}),

		// Labels: metric (MAE, MSE, RMSE, R2, MAPE)
		metricValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_value",
			Help:      "Evaluation metrics of the last run",
		}, []string{"metric"}),

		gatePassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_passed",
			Help:      "1 if the last run passed the metrics gate, 0 otherwise",
		}),

		// Labels: status (ok, rejected)
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total prediction requests by outcome",
		}, []string{"status"}),
	}

	m.registry.MustRegister(m.stageDuration, m.runsTotal, m.metricValue, m.gatePassed, m.predictions)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrediction counts one prediction request.
func (m *Metrics) ObservePrediction(ok bool) {
	status := "ok"
	if !ok {
		status = "rejected"
	}
	m.predictions.WithLabelValues(status).Inc()
}

// StageFinished implements pipeline.Observer.
func (m *Metrics) StageFinished(_ *pipeline.RunContext, result pipeline.StageResult) {
	m.stageDuration.WithLabelValues(result.Stage, string(result.Status)).Observe(result.Duration.Seconds())
}

// RunFinished records the run outcome and the gate verdict, then writes
// the textfile.
func (m *Metrics) RunFinished(rc *pipeline.RunContext, result *pipeline.Result) {
	status := string(pipeline.StatusSucceeded)
	if result == nil || !result.Success {
		status = string(pipeline.StatusFailed)
	}
	m.runsTotal.WithLabelValues(status).Inc()

	if v, ok := rc.Get(stages.ValueMetrics); ok {
		if bundle, ok := v.(*evaluate.Bundle); ok {
			for name, value := range bundle.Values() {
				// Non-finite values are left out of the export.
				if math.IsInf(value, 0) || math.IsNaN(value) {
					m.metricValue.DeleteLabelValues(name)
					m.logger.Debug("Skipping non-finite metric", logging.String("metric", name))
					continue
				}
				m.metricValue.WithLabelValues(name).Set(value)
			}
		}
	}
	if v, ok := rc.Get(stages.ValueGateReport); ok {
		if report, ok := v.(*gate.Report); ok {
			passed := 0.0
			if report.Passed() {
				passed = 1
			}
			m.gatePassed.Set(passed)
		}
	}

	if err := m.WriteTextfile(); err != nil {
		m.logger.Error("Failed to write metrics textfile", err, logging.String("path", m.textfile))
	}
}

// WriteTextfile writes the registry to the configured textfile. It does
// nothing when no textfile is configured.
func (m *Metrics) WriteTextfile() error {
	if m.textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(m.textfile, m.registry)
}
