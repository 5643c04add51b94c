package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	previewStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ideshell",
			Subsystem: "preview",
			Name:      "starts_total",
			Help:      "Number of dev-server processes spawned.",
		}, []string{"service"},
	)
	previewStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ideshell",
			Subsystem: "preview",
			Name:      "stops_total",
			Help:      "Number of dev-server processes terminated on request.",
		}, []string{"service"},
	)
	previewSpawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ideshell",
			Subsystem: "preview",
			Name:      "spawn_failures_total",
			Help:      "Number of dev-server spawns that failed or exited during the grace period.",
		}, []string{"service"},
	)
	previewExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ideshell",
			Subsystem: "preview",
			Name:      "unexpected_exits_total",
			Help:      "Number of dev-server processes that exited without a stop request.",
		}, []string{"service", "status"},
	)
	previewRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ideshell",
			Subsystem: "preview",
			Name:      "running",
			Help:      "Current number of registered preview processes.",
		},
	)

	fileSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ideshell",
			Subsystem: "files",
			Name:      "saves_total",
			Help:      "Number of file saves by outcome kind (ok or an error kind).",
		}, []string{"result"},
	)
	fileSaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ideshell",
			Subsystem: "files",
			Name:      "save_duration_seconds",
			Help:      "Time spent on the store and disk writes of a save.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	statusSyncFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ideshell",
			Subsystem: "status",
			Name:      "sync_failures_total",
			Help:      "Number of service status updates the metadata store rejected or never received.",
		}, []string{"status"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		previewStarts, previewStops, previewSpawnFailures, previewExits, previewRunning,
		fileSaves, fileSaveDuration, statusSyncFailures,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncPreviewStart(service string) {
	if regOK.Load() {
		previewStarts.WithLabelValues(service).Inc()
	}
}

func IncPreviewStop(service string) {
	if regOK.Load() {
		previewStops.WithLabelValues(service).Inc()
	}
}

func IncSpawnFailure(service string) {
	if regOK.Load() {
		previewSpawnFailures.WithLabelValues(service).Inc()
	}
}

func IncUnexpectedExit(service, status string) {
	if regOK.Load() {
		previewExits.WithLabelValues(service, status).Inc()
	}
}

func SetRunningPreviews(n int) {
	if regOK.Load() {
		previewRunning.Set(float64(n))
	}
}

func ObserveSave(result string, seconds float64) {
	if regOK.Load() {
		fileSaves.WithLabelValues(result).Inc()
		fileSaveDuration.Observe(seconds)
	}
}

func IncStatusSyncFailure(status string) {
	if regOK.Load() {
		statusSyncFailures.WithLabelValues(status).Inc()
	}
}
