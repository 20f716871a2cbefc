// Package metrics registers the Prometheus collectors for sheetchat.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sheetchat_build_info",
			Help: "Build information of sheetchat",
		},
		[]string{"version"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetchat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetchat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetchat_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetchat_turns_total",
			Help: "Total number of processed queries by outcome",
		},
		[]string{"outcome"},
	)

	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetchat_turn_duration_seconds",
			Help:    "End-to-end duration of one query turn",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
	)

	CompletionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetchat_completion_errors_total",
			Help: "Total number of failed completions by error kind",
		},
		[]string{"kind"},
	)

	DatasetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetchat_dataset_loads_total",
			Help: "Total number of dataset load attempts by result",
		},
		[]string{"result"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetchat_sessions_active",
			Help: "Number of live chat sessions",
		},
	)
)

// Recorder feeds turn events from sessions into the collectors above.
type Recorder struct{}

func (Recorder) TurnFinished(outcome string, elapsed time.Duration) {
	TurnsTotal.WithLabelValues(outcome).Inc()
	TurnDuration.Observe(elapsed.Seconds())
}

func (Recorder) CompletionFailed(kind string) {
	CompletionErrorsTotal.WithLabelValues(kind).Inc()
}

// DatasetLoaded counts a load attempt; result is ok, size_exceeded or invalid.
func DatasetLoaded(result string) {
	DatasetLoadsTotal.WithLabelValues(result).Inc()
}

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// route pattern keeps session ids out of the label set
		path := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			path = rc.RoutePattern()
		}
		if path == "" {
			path = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
