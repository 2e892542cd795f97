package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/storage"
)

// ListRunsResponse is one page of the run history.
type ListRunsResponse struct {
	Runs  []*storage.Run `json:"runs"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ListRuns returns paginated pipeline runs, newest first.
// Query parameters: page (default 1), limit (default 50, max 100).
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "Run history is disabled")
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsedPage, err := strconv.Atoi(p); err == nil && parsedPage > 0 {
			page = parsedPage
		}
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsedLimit, err := strconv.Atoi(l); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	runs, total, err := h.runs.ListRuns(limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("Failed to list runs", err)
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}

	writeJSON(w, http.StatusOK, ListRunsResponse{Runs: runs, Total: total, Page: page, Limit: limit})
}

// GetRun returns a single run with its stage records.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "Run history is disabled")
		return
	}

	id := mux.Vars(r)["id"]
	run, err := h.runs.GetRun(id)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.logger.Error("Failed to get run", err, logging.String("run_id", id))
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}
