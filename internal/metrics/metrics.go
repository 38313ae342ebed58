// Package metrics holds the Prometheus collectors for search and album building.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "photo_curator"

// Metrics owns a dedicated registry so tests can create independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	stageDuration     *prometheus.HistogramVec
	stageErrors       *prometheus.CounterVec
	requests          *prometheus.CounterVec
	albumBuilds       *prometheus.CounterVec
	skippedEmbeddings prometheus.Counter
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"service": "photo-curator"}, registry)

	m := &Metrics{
		Registry: registry,
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_errors_total",
			Help:      "Number of errors recorded per pipeline stage",
		}, []string{"stage"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_requests_total",
			Help:      "Number of completed pipeline runs by outcome",
		}, []string{"status"}),
		albumBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "album_builds_total",
			Help:      "Number of album build attempts by outcome",
		}, []string{"status"}),
		skippedEmbeddings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scene_skipped_embeddings_total",
			Help:      "Stored scene embeddings skipped because they could not be parsed",
		}),
	}

	wrapped.MustRegister(
		m.stageDuration,
		m.stageErrors,
		m.requests,
		m.albumBuilds,
		m.skippedEmbeddings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveStage records a stage duration and, when failed, an error.
// Safe to call on a nil receiver.
func (m *Metrics) ObserveStage(stage string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

// ObserveRequest counts a finished pipeline run.
func (m *Metrics) ObserveRequest(ok bool) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(status(ok)).Inc()
}

// ObserveAlbumBuild counts an album build attempt.
func (m *Metrics) ObserveAlbumBuild(ok bool) {
	if m == nil {
		return
	}
	m.albumBuilds.WithLabelValues(status(ok)).Inc()
}

// AddSkippedEmbeddings counts malformed stored scene embeddings.
func (m *Metrics) AddSkippedEmbeddings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedEmbeddings.Add(float64(n))
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
