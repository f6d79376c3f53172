// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scribeline"

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsSuccess prometheus.Counter
	SessionsFailed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Chunk metrics
	ChunksPlanned     prometheus.Counter
	ChunksExtracted   prometheus.Counter
	ChunksDropped     *prometheus.CounterVec
	ChunksTranscribed prometheus.Counter
	ChunksFailed      *prometheus.CounterVec
	ChunkDuration     prometheus.Histogram

	// Stage metrics
	StageDuration *prometheus.HistogramVec

	// Worker metrics
	WorkersSized   prometheus.Histogram
	MemoryPressure prometheus.Counter

	// Model metrics
	ModelLatency *prometheus.HistogramVec
	ModelErrors  *prometheus.CounterVec

	// Artifact metrics
	ArtifactsTracked prometheus.Gauge
	ArtifactsEvicted prometheus.Counter
	BytesReclaimed   prometheus.Counter

	// Progress event metrics
	EventsPublished *prometheus.CounterVec
	EventErrors     *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of transcription sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active sessions",
		}),
		SessionsSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_success_total",
			Help:      "Total number of sessions that completed successfully",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended in error",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		ChunksPlanned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_planned_total",
			Help:      "Total number of chunks planned",
		}),
		ChunksExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_extracted_total",
			Help:      "Total number of chunk files extracted",
		}),
		ChunksDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dropped_total",
			Help:      "Total number of chunks dropped before transcription",
		}, []string{"reason"}),
		ChunksTranscribed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_transcribed_total",
			Help:      "Total number of chunks transcribed successfully",
		}),
		ChunksFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_failed_total",
			Help:      "Total number of chunks that failed transcription",
		}, []string{"reason"}),
		ChunkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_processing_seconds",
			Help:      "Per-chunk processing time in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),

		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"stage"}),

		WorkersSized: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workers_sized",
			Help:      "Worker count chosen per transcription run",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		MemoryPressure: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_pressure_total",
			Help:      "Total number of runs started under memory pressure",
		}),

		ModelLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_seconds",
			Help:      "Speech-to-text model call latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"backend"}),
		ModelErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_errors_total",
			Help:      "Total number of speech-to-text model errors",
		}, []string{"backend", "error_type"}),

		ArtifactsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts_tracked",
			Help:      "Number of temporary files currently tracked",
		}),
		ArtifactsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_evicted_total",
			Help:      "Total number of tracked files evicted to bound disk usage",
		}),
		BytesReclaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_reclaimed_total",
			Help:      "Total bytes reclaimed by temporary file cleanup",
		}),

		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_published_total",
			Help:      "Total number of progress events published",
		}, []string{"sink"}),
		EventErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_event_errors_total",
			Help:      "Total number of progress event publish errors",
		}, []string{"sink"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(success bool, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if success {
		m.SessionsSuccess.Inc()
	} else {
		m.SessionsFailed.Inc()
	}
}

// RecordChunksPlanned records the number of chunks in a plan.
func (m *Metrics) RecordChunksPlanned(n int) {
	m.ChunksPlanned.Add(float64(n))
}

// RecordChunkExtracted records a chunk file being written.
func (m *Metrics) RecordChunkExtracted() {
	m.ChunksExtracted.Inc()
}

// RecordChunkDropped records a chunk dropped before transcription.
func (m *Metrics) RecordChunkDropped(reason string) {
	m.ChunksDropped.WithLabelValues(reason).Inc()
}

// RecordChunkResult records the outcome of one chunk's transcription.
func (m *Metrics) RecordChunkResult(err error, reason string, seconds float64) {
	m.ChunkDuration.Observe(seconds)
	if err != nil {
		m.ChunksFailed.WithLabelValues(reason).Inc()
		return
	}
	m.ChunksTranscribed.Inc()
}

// RecordStage records the duration of a pipeline stage.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordWorkerSizing records the worker count chosen for a run.
func (m *Metrics) RecordWorkerSizing(workers int, pressure bool) {
	m.WorkersSized.Observe(float64(workers))
	if pressure {
		m.MemoryPressure.Inc()
	}
}

// RecordModelCall records a speech-to-text model call.
func (m *Metrics) RecordModelCall(backend string, err error, errorType string, seconds float64) {
	m.ModelLatency.WithLabelValues(backend).Observe(seconds)
	if err != nil {
		m.ModelErrors.WithLabelValues(backend, errorType).Inc()
	}
}

// RecordArtifactTracked records the current tracked artifact count.
func (m *Metrics) RecordArtifactTracked(n int) {
	m.ArtifactsTracked.Set(float64(n))
}

// RecordArtifactEvicted records a file evicted from the registry.
func (m *Metrics) RecordArtifactEvicted() {
	m.ArtifactsEvicted.Inc()
}

// RecordBytesReclaimed records bytes freed by cleanup.
func (m *Metrics) RecordBytesReclaimed(bytes int64) {
	m.BytesReclaimed.Add(float64(bytes))
}

// RecordEventPublish records one progress event publish attempt.
func (m *Metrics) RecordEventPublish(sink string, err error) {
	m.EventsPublished.WithLabelValues(sink).Inc()
	if err != nil {
		m.EventErrors.WithLabelValues(sink).Inc()
	}
}
