package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotbook"

var (
	once sync.Once

	availabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_requests_total",
			Help:      "Count of availability computations by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	availabilityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_duration_seconds",
			Help:      "Time to compute availability for one date.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		},
		[]string{"mode"},
	)

	employeesExcluded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "employees_excluded_total",
			Help:      "Count of employees left out of open-mode results because of invalid schedule data.",
		},
		[]string{"reason"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Count of read cache lookups by entity and result.",
		},
		[]string{"entity", "result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by route.",
		},
		[]string{"route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(availabilityRequests, availabilityDuration, employeesExcluded, cacheLookups, httpRequests)
	})
}

// ObserveAvailability records one engine request.
func ObserveAvailability(mode, outcome string, elapsed time.Duration) {
	availabilityRequests.WithLabelValues(mode, outcome).Inc()
	availabilityDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func IncEmployeeExcluded(reason string) {
	employeesExcluded.WithLabelValues(reason).Inc()
}

func IncCacheLookup(entity string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(entity, result).Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}
