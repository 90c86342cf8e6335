// Package metrics carries the ambient observability this spec's
// Non-goals never named but the system's production texture requires
// regardless: Prometheus counters and histograms for item outcomes,
// mapping merges and engine apply latency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector bundles the upsert and mapping instrumentation. Injected
// into UpsertExecutor/MappingService call sites rather than reached
// through package-level globals, matching spec.md §9's "shared
// mutable module state becomes explicitly injected context."
type Collector struct {
	ItemsTotal        *prometheus.CounterVec
	RetriesPerItem    prometheus.Histogram
	EngineApplyLatency prometheus.Histogram
	MappingMerges     *prometheus.CounterVec
}

// NewCollector builds a Collector and registers its metrics with reg.
// Pass prometheus.NewRegistry() in tests to avoid colliding with a
// process-wide default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardwrite",
			Name:      "items_total",
			Help:      "Per-item terminal outcomes processed by the upsert executor.",
		}, []string{"outcome"}),
		RetriesPerItem: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shardwrite",
			Name:      "item_retry_attempts",
			Help:      "Number of apply attempts a single item required, retries included.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		EngineApplyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shardwrite",
			Name:      "engine_apply_seconds",
			Help:      "Latency of a single ShardWriteEngine apply call.",
			Buckets:   prometheus.DefBuckets,
		}),
		MappingMerges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shardwrite",
			Name:      "mapping_merges_total",
			Help:      "Mapping merges, partitioned by reason and outcome.",
		}, []string{"reason", "outcome"}),
	}

	reg.MustRegister(c.ItemsTotal, c.RetriesPerItem, c.EngineApplyLatency, c.MappingMerges)
	return c
}

// Outcome labels for ItemsTotal.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeSkipped     = "skipped"
	OutcomeInterrupted = "interrupted"
)
