package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ballast/internal/api"
	"ballast/internal/api/response"
	"ballast/internal/app"
	"ballast/internal/backtest"
	"ballast/internal/core"
	"ballast/internal/metrics"
	"ballast/internal/storage/runs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner satisfies the handler Runner without touching feeds or
// disk. Fields are set once and only read afterwards.
type fakeRunner struct {
	report *app.Report
	err    error
}

func (f *fakeRunner) RunBacktest(ctx context.Context, opts app.RunOptions) (*app.Report, error) {
	return f.report, f.err
}

func fakeReport() *app.Report {
	return &app.Report{
		Result: &backtest.Result{
			ID:     "run-abc",
			Symbol: "BTCUSDT",
			Metrics: map[string]float64{
				"total_return": 0.15,
			},
		},
	}
}

type serverOptions struct {
	apiKey  string
	runner  *fakeRunner
	store   runs.Store
	metrics *metrics.Registry
}

func newTestServer(t *testing.T, opts serverOptions) *httptest.Server {
	t.Helper()
	if opts.runner == nil {
		opts.runner = &fakeRunner{report: fakeReport()}
	}
	if opts.store == nil {
		opts.store = runs.NewMemoryStore()
	}

	srv, err := api.NewServer(
		api.Config{Host: "localhost", Port: 0, APIKey: opts.apiKey},
		api.Dependencies{Runner: opts.runner, Runs: opts.store, Metrics: opts.metrics},
		nil,
	)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// pollJobStatus fetches a job status without test assertions, safe
// inside Eventually conditions.
func pollJobStatus(url, apiKey string) map[string]any {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var env response.SuccessResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil
	}
	data, _ := env.Data.(map[string]any)
	return data
}

func doJSON(t *testing.T, method, url, apiKey string, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServer_RequiresDependencies(t *testing.T) {
	_, err := api.NewServer(api.Config{}, api.Dependencies{}, nil)
	assert.Error(t, err)

	_, err = api.NewServer(api.Config{}, api.Dependencies{Runner: &fakeRunner{}}, nil)
	assert.Error(t, err, "missing run store should be rejected")
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, serverOptions{apiKey: "secret"})

	// Liveness needs no key.
	resp, body := doJSON(t, "GET", ts.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestServer_AuthRequired(t *testing.T) {
	ts := newTestServer(t, serverOptions{apiKey: "secret"})

	resp, body := doJSON(t, "GET", ts.URL+"/api/v1/runs", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var envelope response.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.False(t, envelope.OK)
	assert.Equal(t, "UNAUTHORIZED", envelope.Error.Code)
}

func TestServer_AuthAcceptsHeaderAndBearer(t *testing.T) {
	ts := newTestServer(t, serverOptions{apiKey: "secret"})

	resp, _ := doJSON(t, "GET", ts.URL+"/api/v1/runs", "secret", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest("GET", ts.URL+"/api/v1/runs", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusOK, r2.StatusCode)
}

func TestServer_AuthDisabledWithoutKey(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	resp, _ := doJSON(t, "GET", ts.URL+"/api/v1/runs", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_BacktestLifecycle(t *testing.T) {
	runner := &fakeRunner{report: fakeReport()}
	ts := newTestServer(t, serverOptions{apiKey: "secret", runner: runner})

	resp, body := doJSON(t, "POST", ts.URL+"/api/v1/backtests", "secret",
		`{"symbol": "BTCUSDT", "start": "2023-01-01", "end": "2024-01-01"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var submitted response.SuccessResponse
	require.NoError(t, json.Unmarshal(body, &submitted))
	require.True(t, submitted.OK)
	jobID := submitted.Data.(map[string]any)["job_id"].(string)
	require.NotEmpty(t, jobID)

	statusURL := ts.URL + "/api/v1/backtests/" + jobID
	require.Eventually(t, func() bool {
		return pollJobStatus(statusURL, "secret")["status"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	_, b := doJSON(t, "GET", statusURL, "secret", "")
	var env response.SuccessResponse
	require.NoError(t, json.Unmarshal(b, &env))
	data := env.Data.(map[string]any)
	report := data["result"].(map[string]any)
	result := report["result"].(map[string]any)
	assert.Equal(t, "run-abc", result["id"])
	assert.Equal(t, "BTCUSDT", result["symbol"])
}

func TestServer_BacktestFailureSurfacesErrorCode(t *testing.T) {
	runner := &fakeRunner{err: core.WrapError(core.ErrFeedUnavailable, nil)}
	ts := newTestServer(t, serverOptions{runner: runner})

	_, body := doJSON(t, "POST", ts.URL+"/api/v1/backtests", "",
		`{"symbol": "BTCUSDT", "start": "2023-01-01", "end": "2024-01-01"}`)
	var submitted response.SuccessResponse
	require.NoError(t, json.Unmarshal(body, &submitted))
	jobID := submitted.Data.(map[string]any)["job_id"].(string)

	statusURL := ts.URL + "/api/v1/backtests/" + jobID
	require.Eventually(t, func() bool {
		return pollJobStatus(statusURL, "")["status"] == "failed"
	}, 2*time.Second, 10*time.Millisecond)

	_, b := doJSON(t, "GET", statusURL, "", "")
	var env response.SuccessResponse
	require.NoError(t, json.Unmarshal(b, &env))
	errDetail := env.Data.(map[string]any)["error"].(map[string]any)
	assert.Equal(t, "FEED_UNAVAILABLE", errDetail["code"])
}

func TestServer_InvalidSubmissionRejected(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	resp, body := doJSON(t, "POST", ts.URL+"/api/v1/backtests", "", `{"symbol": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope response.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.False(t, envelope.OK)
	assert.Equal(t, "CONFIG_MISSING", envelope.Error.Code)
}

func TestServer_UnknownJob(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	resp, body := doJSON(t, "GET", ts.URL+"/api/v1/backtests/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var envelope response.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, "JOB_NOT_FOUND", envelope.Error.Code)
}

func TestServer_RunHistory(t *testing.T) {
	store := runs.NewMemoryStore()
	require.NoError(t, store.SaveRun(context.Background(), core.RunRecord{
		ID: "run-1", Symbol: "BTCUSDT", TotalReturn: 0.1,
	}))
	ts := newTestServer(t, serverOptions{store: store})

	resp, body := doJSON(t, "GET", ts.URL+"/api/v1/runs", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env response.SuccessResponse
	require.NoError(t, json.Unmarshal(body, &env))
	records := env.Data.([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "run-1", records[0].(map[string]any)["id"])

	resp, body = doJSON(t, "GET", ts.URL+"/api/v1/runs/run-1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "run-1", env.Data.(map[string]any)["id"])

	resp, _ = doJSON(t, "GET", ts.URL+"/api/v1/runs/ghost", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	registry := metrics.NewRegistry()
	ts := newTestServer(t, serverOptions{metrics: registry})

	// Generate one instrumented request first.
	resp, _ := doJSON(t, "GET", ts.URL+"/api/v1/runs", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mResp, body := doJSON(t, "GET", ts.URL+"/metrics", "", "")
	require.Equal(t, http.StatusOK, mResp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
	assert.Contains(t, string(body), `route="GET /api/v1/runs"`)
}

func TestServer_RequestIDHeader(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	resp, _ := doJSON(t, "GET", ts.URL+"/healthz", "", "")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestServer_Shutdown(t *testing.T) {
	srv, err := api.NewServer(
		api.Config{Host: "localhost", Port: 0},
		api.Dependencies{Runner: &fakeRunner{report: fakeReport()}, Runs: runs.NewMemoryStore()},
		nil,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
