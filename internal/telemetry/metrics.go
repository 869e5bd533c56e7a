package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	ScanRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scan_runs_total",
		Help: "Number of periodic cron-condition scans",
	})
	ConditionsEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conditions_evaluated_total",
		Help: "Number of condition evaluations across all scans",
	})
	ActionsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "actions_executed_total",
		Help: "Number of successfully executed rule actions",
	}, []string{"trigger"})
	ActionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "action_failures_total",
		Help: "Number of failed rule action executions",
	}, []string{"trigger"})
	BusSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bus_subscriptions",
		Help: "Number of live event bus subscriptions",
	})
)

func Init() {
	prometheus.MustRegister(httpReqs, httpDur, ScanRuns, ConditionsEvaluated, ActionsExecuted, ActionFailures, BusSubscriptions)
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// get route pattern if available
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
