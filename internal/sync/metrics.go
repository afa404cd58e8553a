package sync

import (
	stdsync "sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds Prometheus metrics shared by the sync engine components.
type metrics struct {
	batchDuration    prometheus.Histogram
	entriesProcessed *prometheus.CounterVec
	pendingEntries   prometheus.Gauge
	remoteChanges    *prometheus.CounterVec
	syncTriggers     *prometheus.CounterVec
}

var (
	metricsInstance *metrics
	metricsOnce     stdsync.Once
	defaultRegistry = prometheus.DefaultRegisterer
)

// newMetrics initializes and registers Prometheus metrics using a singleton pattern.
func newMetrics() *metrics {
	metricsOnce.Do(func() {
		metricsInstance = &metrics{
			batchDuration: promauto.With(defaultRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "sync_queue_batch_duration_seconds",
				Help:    "Time taken to process one upload queue batch",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}),
			entriesProcessed: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "sync_queue_entries_total",
				Help: "Upload queue entries by processing outcome",
			}, []string{"outcome", "entity_type"}),
			pendingEntries: promauto.With(defaultRegistry).NewGauge(prometheus.GaugeOpts{
				Name: "sync_queue_pending_entries",
				Help: "Upload queue depth after the most recent batch",
			}),
			remoteChanges: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "sync_remote_changes_total",
				Help: "Remote document changes by scope and merge outcome",
			}, []string{"scope", "outcome"}),
			syncTriggers: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "sync_triggers_total",
				Help: "Queue processing triggers by source",
			}, []string{"source"}),
		}
	})
	return metricsInstance
}

// For testing purposes - reset metrics
func resetMetricsForTesting() {
	reg := prometheus.NewRegistry()
	defaultRegistry = reg

	metricsInstance = nil
	metricsOnce = stdsync.Once{}
}
