// Package handlers serves predictions and the run history over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/middleware"
	"rul-pipeline/internal/predict"
	"rul-pipeline/internal/storage"
	"rul-pipeline/internal/telemetry"
)

// InvalidInputMessage is the only error text a prediction client sees.
const InvalidInputMessage = "Please enter valid numbers for all fields."

// Predictor scores one observation.
type Predictor interface {
	Predict(data predict.CustomData) (float64, error)
}

type Handlers struct {
	predictor Predictor
	runs      storage.RunStore
	metrics   *telemetry.Metrics
	limiter   middleware.KeyLimiter
	logger    logging.Logger
}

// New creates the handlers. predictor, runs and metrics may be nil: the
// corresponding endpoints then report the feature as unavailable.
func New(predictor Predictor, runs storage.RunStore, metrics *telemetry.Metrics, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handlers{
		predictor: predictor,
		runs:      runs,
		metrics:   metrics,
		logger:    logger,
	}
}

// LimitPredictions rate limits POST /predict per client.
func (h *Handlers) LimitPredictions(limiter middleware.KeyLimiter) *Handlers {
	h.limiter = limiter
	return h
}

// HealthCheck returns the health status of the service and its dependencies
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	code := http.StatusOK

	if h.predictor != nil {
		status["model_status"] = "loaded"
	} else {
		status["model_status"] = "not_loaded"
	}

	if h.runs == nil {
		status["storage_status"] = "not_configured"
	} else if err := h.runs.Health(); err != nil {
		status["status"] = "unhealthy"
		status["storage_status"] = "unhealthy"
		status["storage_error"] = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		status["storage_status"] = "healthy"
	}

	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
