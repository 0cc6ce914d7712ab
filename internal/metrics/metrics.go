// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "call_audit"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Model metrics
	ModelsLoaded     *prometheus.GaugeVec
	ModelCallLatency *prometheus.HistogramVec
	ModelCallErrors  *prometheus.CounterVec

	// Pipeline metrics
	ChunksTranscribed prometheus.Counter
	StageTimeouts     *prometheus.CounterVec
	WorkersInUse      prometheus.Gauge
	AuditsTotal       *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// Default is the global metrics instance.
var Default = New()

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"endpoint"}),

		ModelsLoaded: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when the named model loaded at startup, 0 otherwise",
		}, []string{"model"}),
		ModelCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_latency_seconds",
			Help:      "Model inference latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model"}),
		ModelCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_call_errors_total",
			Help:      "Total number of failed model calls",
		}, []string{"model"}),

		ChunksTranscribed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_transcribed_total",
			Help:      "Total number of audio chunks transcribed",
		}),
		StageTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_timeouts_total",
			Help:      "Total number of pipeline stages that exceeded their deadline",
		}, []string{"stage"}),
		WorkersInUse: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_in_use",
			Help:      "Worker pool slots currently held by model calls",
		}),
		AuditsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audits_total",
			Help:      "Total number of call audits by outcome",
		}, []string{"status"}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of analysis cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of analysis cache misses",
		}),
		CacheErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of cache backend errors downgraded to misses",
		}, []string{"op"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordRequest records a finished HTTP request.
func (m *Metrics) RecordRequest(endpoint, status string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// SetModelLoaded records the startup load outcome for a model.
func (m *Metrics) SetModelLoaded(model string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	m.ModelsLoaded.WithLabelValues(model).Set(v)
}

// RecordModelCall records one inference call.
func (m *Metrics) RecordModelCall(model string, d time.Duration, err error) {
	m.ModelCallLatency.WithLabelValues(model).Observe(d.Seconds())
	if err != nil {
		m.ModelCallErrors.WithLabelValues(model).Inc()
	}
}

func (m *Metrics) RecordChunkTranscribed() {
	m.ChunksTranscribed.Inc()
}

func (m *Metrics) RecordStageTimeout(stage string) {
	m.StageTimeouts.WithLabelValues(stage).Inc()
}

func (m *Metrics) SetWorkersInUse(n int) {
	m.WorkersInUse.Set(float64(n))
}

// RecordAudit records the outcome of a full audit ("completado" or "error").
func (m *Metrics) RecordAudit(status string) {
	m.AuditsTotal.WithLabelValues(status).Inc()
}

// RecordCacheLookup records a hit or a miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheHits.Inc()
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) RecordCacheError(op string) {
	m.CacheErrors.WithLabelValues(op).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
