package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"rul-pipeline/internal/middleware"
)

// Router configures all HTTP routes.
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logging(h.logger))

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	var predictHandler http.Handler = http.HandlerFunc(h.Predict)
	if h.limiter != nil {
		predictHandler = middleware.RateLimit(h.limiter, h.logger)(predictHandler)
	}
	router.Handle("/predict", predictHandler).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", h.GetRun).Methods(http.MethodGet)

	if h.metrics != nil {
		router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}
	return router
}
