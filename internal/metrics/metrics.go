package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgsearch_fetch_requests_total",
			Help: "Total number of search page fetches executed",
		},
		[]string{"host", "status", "detected", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgsearch_fetch_duration_seconds",
			Help:    "Duration of search page fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"host"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgsearch_fetch_bytes_total",
			Help: "Total bytes downloaded across all fetches",
		},
		[]string{"host"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgsearch_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)

	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgsearch_cycles_total",
			Help: "Completed fetch cycles by outcome",
		},
		[]string{"outcome"},
	)

	CycleItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgsearch_cycle_items",
			Help:    "Image URLs extracted per successful cycle",
			Buckets: []float64{0, 1, 5, 10, 20, 40, 60, 100},
		},
	)

	CyclesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgsearch_cycles_in_flight",
			Help: "Fetch cycles currently running",
		},
	)
)

// FetchSample describes one completed HTTP fetch.
type FetchSample struct {
	StatusCode   int
	Failed       bool // no HTTP response was received
	DetectionSrc string
	Duration     time.Duration
	Bytes        int
}

// RecordFetch updates the fetch metrics for host.
func RecordFetch(host string, s FetchSample) {
	detected := "false"
	if s.DetectionSrc != "" {
		detected = "true"
	}

	status := strconv.Itoa(s.StatusCode)
	if s.Failed {
		status = "error"
	}

	FetchRequestsTotal.WithLabelValues(host, status, detected, s.DetectionSrc).Inc()
	FetchDuration.WithLabelValues(host).Observe(s.Duration.Seconds())
	FetchBytesTotal.WithLabelValues(host).Add(float64(s.Bytes))
}

// Cycle outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RecordCycle counts a completed cycle. items is ignored for failures.
func RecordCycle(outcome string, items int) {
	CyclesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		CycleItems.Observe(float64(items))
	}
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
