// Package metrics exposes Prometheus instrumentation for acquisitions, the
// request scheduler and the HTTP API.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yuzuleung/sun-visualization/internal/queue"
	"github.com/yuzuleung/sun-visualization/internal/sun"
)

const namespace = "sunviz"

// Collector provides application metrics collection
type Collector struct {
	// Acquisition Metrics
	AcquisitionsTotal   *prometheus.CounterVec
	RemoteFetchDuration prometheus.Histogram
	RemoteFetchErrors   *prometheus.CounterVec

	// Load Metrics
	LoadDuration prometheus.Histogram
	LoadedCities *prometheus.GaugeVec

	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	factory promauto.Factory
}

// NewCollector registers the collector's metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		AcquisitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "acquisitions_total",
				Help:      "Finished acquisitions by terminal state and provenance",
			},
			[]string{"state", "provenance"},
		),

		RemoteFetchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_fetch_duration_seconds",
				Help:      "Archive fetch duration including queue wait",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),

		RemoteFetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_fetch_errors_total",
				Help:      "Failed archive fetches by error class",
			},
			[]string{"error_type"},
		),

		LoadDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_duration_seconds",
				Help:      "Duration of a batch load",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),

		LoadedCities: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_load_cities",
				Help:      "Outcome counts of the most recent batch load",
			},
			[]string{"outcome"},
		),

		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"route"},
		),

		factory: f,
	}
}

// RecordAcquisition implements sun.Recorder.
func (c *Collector) RecordAcquisition(state sun.State, provenance sun.Provenance) {
	p := string(provenance)
	if p == "" {
		p = "none"
	}
	c.AcquisitionsTotal.WithLabelValues(string(state), p).Inc()
}

// ObserveRemoteFetch implements sun.Recorder.
func (c *Collector) ObserveRemoteFetch(d time.Duration, err error) {
	c.RemoteFetchDuration.Observe(d.Seconds())
	if err != nil {
		c.RemoteFetchErrors.WithLabelValues(errorType(err)).Inc()
	}
}

// ObserveLoad records a finished batch.
func (c *Collector) ObserveLoad(s sun.Summary) {
	c.LoadDuration.Observe(s.Duration.Seconds())
	c.LoadedCities.WithLabelValues("succeeded").Set(float64(s.Succeeded))
	c.LoadedCities.WithLabelValues("failed").Set(float64(s.Failed))
	c.LoadedCities.WithLabelValues("cache_hit").Set(float64(s.CacheHits))
}

// ObserveRequest records one API request.
func (c *Collector) ObserveRequest(route, method string, status int, d time.Duration) {
	c.APIRequestsTotal.WithLabelValues(route, method, statusClass(status)).Inc()
	c.APIRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// WatchScheduler exports the scheduler's live counters.
func (c *Collector) WatchScheduler(s *queue.Scheduler) {
	gauge := func(name, help string, fn func(queue.Stats) float64) {
		c.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(s.Stats()) })
	}
	gauge("pending_tasks", "Tasks waiting for a slot", func(st queue.Stats) float64 { return float64(st.Pending) })
	gauge("in_flight_tasks", "Tasks currently running", func(st queue.Stats) float64 { return float64(st.InFlight) })
	gauge("peak_in_flight_tasks", "Highest concurrent task count observed", func(st queue.Stats) float64 { return float64(st.PeakInFlight) })
	gauge("max_concurrency", "Configured concurrency bound", func(queue.Stats) float64 { return float64(s.MaxConcurrency()) })
	c.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "dispatched_tasks_total",
		Help:      "Tasks handed to a worker",
	}, func() float64 { return float64(s.Stats().Dispatched) })
}

func errorType(err error) string {
	switch {
	case errors.Is(err, sun.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, sun.ErrTransient):
		return "transient"
	}
	return "other"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}
