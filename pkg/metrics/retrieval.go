package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initRetrievalMetrics initializes retrieval and timeline metrics.
func (m *Manager) initRetrievalMetrics(cfg Config) {
	m.retrievals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_retrievals_total",
			Help: "Total number of retrieval operations by strategy",
		},
		[]string{"strategy"},
	)

	m.retrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memory_retrieval_duration_seconds",
			Help:    "Retrieval operation duration in seconds",
			Buckets: cfg.RetrievalDurationBuckets,
		},
		[]string{"strategy"},
	)

	m.packedChars = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memory_packed_context_chars",
			Help:    "Character count of packed context outputs",
			Buckets: cfg.PackedCharsBuckets,
		},
	)

	m.itemsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memory_items_stored_total",
			Help: "Total number of memory items stored by backend",
		},
		[]string{"backend"},
	)

	m.itemsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memory_items_deleted_total",
			Help: "Total number of memory items deleted",
		},
	)

	m.registry.MustRegister(m.retrievals)
	m.registry.MustRegister(m.retrievalDuration)
	m.registry.MustRegister(m.packedChars)
	m.registry.MustRegister(m.itemsStored)
	m.registry.MustRegister(m.itemsDeleted)
}

// RecordRetrieval records a single retrieval operation.
func (m *Manager) RecordRetrieval(strategy string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.retrievals.WithLabelValues(strategy).Inc()
	m.retrievalDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordPackedChars records the size of a packed context output.
func (m *Manager) RecordPackedChars(n int) {
	if !m.enabled {
		return
	}
	m.packedChars.Observe(float64(n))
}

// RecordItemStored records a stored memory item.
func (m *Manager) RecordItemStored(backend string) {
	if !m.enabled {
		return
	}
	m.itemsStored.WithLabelValues(backend).Inc()
}

// RecordItemsDeleted records a timeline deletion of n items.
func (m *Manager) RecordItemsDeleted(n int) {
	if !m.enabled {
		return
	}
	m.itemsDeleted.Add(float64(n))
}
