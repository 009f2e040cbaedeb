package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesTotal      *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec
	advisorRequests  *prometheus.CounterVec
	advisorDuration  prometheus.Histogram
	jobsActive       *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_backtests_total",
			Help: "Total number of backtest runs",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_backtest_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_trades_total",
			Help: "Total number of simulated trades",
		},
		[]string{"rule", "side"},
	)
	r.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_events_dispatched_total",
			Help: "Total number of events handed to the router",
		},
		[]string{"type", "status"},
	)
	r.advisorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballast_advisor_requests_total",
			Help: "Total number of advisor commentary requests",
		},
		[]string{"provider", "status"},
	)
	r.advisorDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballast_advisor_duration_seconds",
			Help:    "Advisor request duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	r.jobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ballast_jobs_active",
			Help: "Number of jobs by state",
		},
		[]string{"state"},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.eventsTotal)
	reg.MustRegister(r.advisorRequests)
	reg.MustRegister(r.advisorDuration)
	reg.MustRegister(r.jobsActive)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, route string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, route, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordTrade records one simulated trade.
func (r *Registry) RecordTrade(rule, side string) {
	r.tradesTotal.WithLabelValues(rule, side).Inc()
}

// RecordEventDispatch records the outcome of routing one event.
func (r *Registry) RecordEventDispatch(eventType, status string) {
	r.eventsTotal.WithLabelValues(eventType, status).Inc()
}

// RecordAdvisorRequest records an advisor commentary request.
func (r *Registry) RecordAdvisorRequest(provider, status string, duration float64) {
	r.advisorRequests.WithLabelValues(provider, status).Inc()
	r.advisorDuration.Observe(duration)
}

// SetJobsActive sets the number of jobs in a state.
func (r *Registry) SetJobsActive(state string, count int) {
	r.jobsActive.WithLabelValues(state).Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
