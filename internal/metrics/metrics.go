// Package metrics provides Prometheus metrics for card filesystem sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cachePopulationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardfs_cache_populations_total",
			Help: "Total number of listing cache populations",
		},
		[]string{"status"},
	)

	cachePopulationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardfs_cache_population_duration_seconds",
			Help:    "Time to enumerate the card object table",
			Buckets: prometheus.DefBuckets,
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardfs_cache_entries",
			Help: "Number of objects in the listing cache",
		},
	)

	cacheGrowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardfs_cache_grows_total",
			Help: "Total number of listing cache reallocations",
		},
	)

	cacheCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardfs_cache_capacity",
			Help: "Backing capacity of the listing cache",
		},
	)

	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardfs_lookups_total",
			Help: "Total file info lookups by result",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Observer records session events. It satisfies mscfs.Observer.
type Observer struct{}

// CachePopulated records one population attempt.
func (Observer) CachePopulated(entries int, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	cachePopulationsTotal.WithLabelValues(status).Inc()
	cachePopulationDuration.Observe(d.Seconds())
	cacheEntries.Set(float64(entries))
}

// CacheGrown records a cache reallocation.
func (Observer) CacheGrown(capacity int) {
	cacheGrowsTotal.Inc()
	cacheCapacity.Set(float64(capacity))
}

// Lookup records a file info lookup.
func (Observer) Lookup(found, virtual bool) {
	result := "miss"
	switch {
	case virtual:
		result = "root"
	case found:
		result = "hit"
	}
	lookupsTotal.WithLabelValues(result).Inc()
}
