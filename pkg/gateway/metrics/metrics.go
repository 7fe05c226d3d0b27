// Package metrics exposes the gateway's Prometheus instrumentation on a
// private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Live session metrics
	SessionsActive  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration *prometheus.HistogramVec

	// Relay traffic metrics
	ClientFramesTotal *prometheus.CounterVec
	AudioBytesTotal   *prometheus.CounterVec
	EventsTotal       *prometheus.CounterVec

	// Image job metrics
	ImageJobsTotal   *prometheus.CounterVec
	ImageJobDuration prometheus.Histogram

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all gateway metrics registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coco"
	}

	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions currently relaying",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of live sessions",
		},
		[]string{"response_mode", "status"},
	)

	sessionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Live session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"response_mode"},
	)

	clientFramesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_frames_total",
			Help:      "Total client WebSocket frames by kind",
		},
		[]string{"kind"},
	)

	audioBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total audio bytes relayed",
		},
		[]string{"direction"},
	)

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total runtime events delivered to clients",
		},
		[]string{"type"},
	)

	imageJobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_jobs_total",
			Help:      "Total image generation jobs by terminal status",
		},
		[]string{"status"},
	)

	imageJobDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "image_job_duration_seconds",
			Help:      "Image generation job duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	registry.MustRegister(
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		clientFramesTotal,
		audioBytesTotal,
		eventsTotal,
		imageJobsTotal,
		imageJobDuration,
		errorsTotal,
	)

	return &Metrics{
		registry:          registry,
		SessionsActive:    sessionsActive,
		SessionsTotal:     sessionsTotal,
		SessionDuration:   sessionDuration,
		ClientFramesTotal: clientFramesTotal,
		AudioBytesTotal:   audioBytesTotal,
		EventsTotal:       eventsTotal,
		ImageJobsTotal:    imageJobsTotal,
		ImageJobDuration:  imageJobDuration,
		ErrorsTotal:       errorsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSessionStart records a live session starting.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a live session ending.
func (m *Metrics) RecordSessionEnd(responseMode, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(responseMode, status).Inc()
	m.SessionDuration.WithLabelValues(responseMode).Observe(duration.Seconds())
}

// RecordClientFrame records one inbound client frame.
func (m *Metrics) RecordClientFrame(kind string, bytes int) {
	if m == nil {
		return
	}
	m.ClientFramesTotal.WithLabelValues(kind).Inc()
	if kind == "audio" {
		m.AudioBytesTotal.WithLabelValues("input").Add(float64(bytes))
	}
}

// RecordEvent records one runtime event delivered to a client.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// RecordImageJob records a terminal image job outcome.
func (m *Metrics) RecordImageJob(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ImageJobsTotal.WithLabelValues(status).Inc()
	m.ImageJobDuration.Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
