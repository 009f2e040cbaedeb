// Package api implements the JSON handlers mounted under /api/v1.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ballast/internal/api/job"
	"ballast/internal/api/response"
	"ballast/internal/app"
	"ballast/internal/core"
	"ballast/internal/metrics"

	"go.uber.org/zap"
)

// backtestTimeout bounds feed fetches of a job; the simulation itself
// runs to completion once data is resident.
const backtestTimeout = 5 * time.Minute

const dateLayout = "2006-01-02"

// Runner executes one backtest run end to end. Satisfied by *app.App.
type Runner interface {
	RunBacktest(ctx context.Context, opts app.RunOptions) (*app.Report, error)
}

// BacktestRequest is the request body for submitting a backtest.
type BacktestRequest struct {
	Symbol   string             `json:"symbol"`
	Start    string             `json:"start"`
	End      string             `json:"end"`
	Interval string             `json:"interval,omitempty"`
	Params   map[string]float64 `json:"params,omitempty"`
	Archive  bool               `json:"archive,omitempty"`
	Notify   bool               `json:"notify,omitempty"`
	Advise   bool               `json:"advise,omitempty"`
}

// BacktestHandler accepts backtest submissions and reports job status.
type BacktestHandler struct {
	jobs     *job.Store
	runner   Runner
	logger   *zap.Logger
	registry *metrics.Registry // nil when metrics are disabled
}

// NewBacktestHandler creates a backtest handler. registry may be nil.
func NewBacktestHandler(jobs *job.Store, runner Runner, registry *metrics.Registry, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobs:     jobs,
		runner:   runner,
		logger:   logger,
		registry: registry,
	}
}

// Create submits a backtest and responds 202 with the job id. The run
// executes on its own goroutine; poll GetStatus for the outcome.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, fmt.Errorf("decoding request: %w", err)))
		return
	}

	opts, err := req.runOptions()
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	j := h.jobs.Create("backtest")
	h.syncJobsGauge()

	go h.run(j.ID, opts)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

func (req BacktestRequest) runOptions() (app.RunOptions, error) {
	if req.Symbol == "" {
		return app.RunOptions{}, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("symbol is required"))
	}
	if req.Start == "" || req.End == "" {
		return app.RunOptions{}, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("start and end are required"))
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		return app.RunOptions{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("start: %w", err))
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		return app.RunOptions{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("end: %w", err))
	}
	if !end.After(start) {
		return app.RunOptions{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("end %s not after start %s", req.End, req.Start))
	}

	return app.RunOptions{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Start:    start,
		End:      end,
		Params:   req.Params,
		Archive:  req.Archive,
		Notify:   req.Notify,
		Advise:   req.Advise,
	}, nil
}

// run executes the backtest and moves the job through its states.
func (h *BacktestHandler) run(jobID string, opts app.RunOptions) {
	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})
	h.syncJobsGauge()

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()

	report, err := h.runner.RunBacktest(ctx, opts)
	if err != nil {
		h.logger.Error("backtest job failed",
			zap.String("job_id", jobID),
			zap.String("symbol", opts.Symbol),
			zap.Error(err),
		)
		h.jobs.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		h.syncJobsGauge()
		return
	}

	h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.Result = report
	})
	h.syncJobsGauge()
}

// GetStatus returns the state of a submitted job; completed jobs embed
// the full report.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":     j.ID,
		"status":     j.Status,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
	if j.Status == job.StatusCompleted {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *BacktestHandler) syncJobsGauge() {
	if h.registry == nil {
		return
	}
	counts := h.jobs.Counts()
	for _, s := range []job.Status{job.StatusPending, job.StatusRunning, job.StatusCompleted, job.StatusFailed} {
		h.registry.SetJobsActive(string(s), counts[s])
	}
}

func asCoreError(err error) *core.Error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr
	}
	return &core.Error{Code: "INTERNAL_ERROR", Message: err.Error()}
}
