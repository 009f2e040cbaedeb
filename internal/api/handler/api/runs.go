package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ballast/internal/api/response"
	"ballast/internal/core"
	"ballast/internal/storage/runs"
)

const defaultRunsLimit = 50

// RunsHandler serves the run history.
type RunsHandler struct {
	store runs.Store
}

func NewRunsHandler(store runs.Store) *RunsHandler {
	return &RunsHandler{store: store}
}

// List returns the most recent run records, newest first. The limit
// query parameter caps the count, default 50.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrConfigInvalid, fmt.Errorf("limit %q must be a positive integer", q)))
			return
		}
		limit = n
	}

	records, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}

	response.JSON(w, http.StatusOK, records)
}

// Get returns one run record by id.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		response.Error(w, status, err)
		return
	}

	response.JSON(w, http.StatusOK, record)
}
