// Package metrics provides Prometheus metrics for the rested client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fetch orchestration metrics
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rested_fetches_total",
			Help: "Total fetch legs by source and outcome",
		},
		[]string{"source", "result"},
	)

	transportRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rested_transport_requests_total",
			Help: "Total HTTP requests sent by the transport",
		},
		[]string{"method", "status"},
	)

	transportRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rested_transport_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Offline queue metrics
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rested_offline_queue_depth",
			Help: "Number of mutating requests waiting for reconnect",
		},
	)

	queuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rested_offline_queued_total",
			Help: "Total mutating requests deferred while offline",
		},
	)

	replayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rested_offline_replayed_total",
			Help: "Total queued requests replayed on reconnect",
		},
		[]string{"result"},
	)

	onlineState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rested_online",
			Help: "1 when the client considers the remote reachable",
		},
	)

	// Event channel metrics
	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rested_events_published_total",
			Help: "Total events published on the event channel",
		},
		[]string{"type"},
	)

	// Cache store metrics
	cacheReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rested_cache_reads_total",
			Help: "Total cache entry reads",
		},
		[]string{"result"},
	)

	cacheWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rested_cache_writes_total",
			Help: "Total cache entry writes",
		},
	)

	cacheRemovalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rested_cache_removals_total",
			Help: "Total cache entry removals",
		},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rested_store_operation_duration_seconds",
			Help:    "Persistent store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch records the outcome of one local or remote fetch leg.
func RecordFetch(source string, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	fetchesTotal.WithLabelValues(source, result).Inc()
}

// RecordTransportRequest records an HTTP request sent by the transport.
// A status of 0 means the request never got a response.
func RecordTransportRequest(method string, status int, duration time.Duration) {
	transportRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	transportRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetQueueDepth sets the current offline queue depth.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordQueued records a request deferred while offline.
func RecordQueued() {
	queuedTotal.Inc()
}

// RecordReplay records the outcome of a replayed request.
func RecordReplay(success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	replayedTotal.WithLabelValues(result).Inc()
}

// SetOnline records the connectivity state.
func SetOnline(online bool) {
	if online {
		onlineState.Set(1)
		return
	}
	onlineState.Set(0)
}

// RecordEvent records an event publication.
func RecordEvent(eventType string) {
	eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordCacheRead records a cache read by hit or miss.
func RecordCacheRead(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	cacheReadsTotal.WithLabelValues(result).Inc()
}

// RecordCacheWrite records a cache entry write.
func RecordCacheWrite() {
	cacheWritesTotal.Inc()
}

// RecordCacheRemoval records a cache entry removal.
func RecordCacheRemoval() {
	cacheRemovalsTotal.Inc()
}

// RecordStoreOperation records a persistent store operation duration.
func RecordStoreOperation(backend, operation string, duration time.Duration) {
	storeOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}
