package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Define global variables for metrics.
// We use 'promauto' which automatically registers metrics without complex initialization.

var (
	// 1. Graph size (Gauges)
	// Set by the engine after every build step, load and save.
	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kektorgraph_nodes_total",
			Help: "Number of nodes in the open graph",
		},
	)

	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kektorgraph_edges_total",
			Help: "Number of edges in the open graph",
		},
	)

	// 2. Traversal steps (Counter)
	// Counts every cursor step, labeled by step name (has, out, select, ...).
	TraversalSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_traversal_steps_total",
			Help: "Total number of traversal steps evaluated",
		},
		[]string{"step"},
	)

	// 3. Sorted-file lookups (Counters)
	// Probe cache effectiveness for the bisect backend.
	BisectCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kektorgraph_bisect_cache_hits_total",
			Help: "Offset probes answered from the bisect cache",
		},
	)

	BisectCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kektorgraph_bisect_cache_misses_total",
			Help: "Offset probes that had to read the file",
		},
	)

	// 4. Persistence duration (Histogram)
	// Measures graph save/load time, labeled by operation.
	PersistenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorgraph_persistence_duration_seconds",
			Help:    "Duration of graph save and load operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)
)
