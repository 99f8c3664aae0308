package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of an identify request.
const (
	OutcomeNewPrimary   = "new_primary"
	OutcomeNewSecondary = "new_secondary"
	OutcomeLookup       = "lookup"
	OutcomeInvalid      = "invalid"
	OutcomeError        = "error"
)

var (
	// IdentifyRequests counts identify requests by outcome.
	IdentifyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_identify_requests_total",
		Help: "Total number of identify requests by outcome",
	}, []string{"outcome"})

	// IdentifyDuration observes the latency of identify requests in seconds.
	IdentifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "identity_identify_duration_seconds",
		Help:    "Latency of identify requests in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Consolidations counts merges of clusters.
	Consolidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_consolidations_total",
		Help: "Total number of cluster consolidations",
	})

	// DemotedPrimaries counts primaries demoted to secondaries by consolidations.
	DemotedPrimaries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_demoted_primaries_total",
		Help: "Total number of primary contacts demoted to secondary",
	})

	// LockWait observes how long requests waited for their locks, in seconds.
	LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "identity_lock_wait_seconds",
		Help:    "Time spent waiting for identity locks in seconds",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)
