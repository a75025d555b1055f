package monitoring

import (
	"time"

	"streamlytics/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Counters
	eventsIngestedTotal  *prometheus.CounterVec
	anomaliesTotal       *prometheus.CounterVec
	broadcastErrorsTotal prometheus.Counter
	queueFallbackTotal   prometheus.Counter

	// Gauges
	subscribersConnected prometheus.Gauge
	bufferSize           prometheus.Gauge

	// Histograms
	snapshotDuration prometheus.Histogram
	ingestDuration   prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		eventsIngestedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamlytics_events_ingested_total",
			Help: "Total number of analytics events ingested",
		}, []string{"event_type"}),

		anomaliesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamlytics_anomalies_detected_total",
			Help: "Total number of anomalies flagged by the ingestion pipeline",
		}, []string{"anomaly_type"}),

		broadcastErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamlytics_broadcast_errors_total",
			Help: "Total number of failed subscriber sends",
		}),

		queueFallbackTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamlytics_queue_fallback_total",
			Help: "Total number of events processed synchronously because the queue was unavailable",
		}),

		subscribersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamlytics_subscribers_connected",
			Help: "Number of live WebSocket subscribers",
		}),

		bufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamlytics_event_buffer_size",
			Help: "Number of events in the in-process recent-event buffer",
		}),

		snapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamlytics_snapshot_computation_duration_seconds",
			Help:    "Duration of metrics snapshot computation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),

		ingestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamlytics_ingest_duration_seconds",
			Help:    "Duration of the per-event ingestion pipeline",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

func (p *PrometheusCollector) RecordEventIngested(eventType domain.EventType) {
	p.eventsIngestedTotal.WithLabelValues(string(eventType)).Inc()
}

func (p *PrometheusCollector) RecordAnomaly(anomalyType domain.AnomalyType) {
	p.anomaliesTotal.WithLabelValues(string(anomalyType)).Inc()
}

func (p *PrometheusCollector) RecordBroadcastError() {
	p.broadcastErrorsTotal.Inc()
}

func (p *PrometheusCollector) RecordQueueFallback() {
	p.queueFallbackTotal.Inc()
}

func (p *PrometheusCollector) SetSubscriberCount(n int) {
	p.subscribersConnected.Set(float64(n))
}

func (p *PrometheusCollector) SetBufferSize(n int) {
	p.bufferSize.Set(float64(n))
}

func (p *PrometheusCollector) RecordSnapshotComputation(duration time.Duration) {
	p.snapshotDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordIngest(duration time.Duration) {
	p.ingestDuration.Observe(duration.Seconds())
}
