package memory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the Prometheus instruments for one CrystalMemory.
// Attach it with WithMetrics; without it the memory records nothing.
type Collector struct {
	AddTotal         prometheus.Counter
	InferTotal       prometheus.Counter
	InferDuration    prometheus.Histogram
	LearnBitsFlipped prometheus.Counter
	SettleSteps      prometheus.Histogram
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

// NewCollector registers the crystal memory metrics with reg. Pass
// prometheus.DefaultRegisterer for process-global metrics, or a private
// registry in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		AddTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystal_memory_add_total",
			Help: "Crystals stored, including basin overwrites",
		}),
		InferTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystal_memory_infer_total",
			Help: "Nearest-attractor lookups served",
		}),
		InferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crystal_memory_infer_duration_seconds",
			Help:    "Latency of nearest-attractor scans",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		LearnBitsFlipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystal_memory_learn_bits_flipped_total",
			Help: "Bits flipped by Hebbian sculpting",
		}),
		SettleSteps: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crystal_memory_settle_steps",
			Help:    "Sweeps taken by field settling during Crystallize",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystal_memory_expand_cache_hits_total",
			Help: "Expanded-field cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystal_memory_expand_cache_misses_total",
			Help: "Expanded-field cache misses",
		}),
	}
}
