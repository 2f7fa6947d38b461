package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "matches_total", Help: "Total number of decided matches"})
	NoDriverTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "no_driver_total", Help: "Match attempts that exhausted all radius tiers"})
	MatchLatency  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "dispatch", Name: "match_latency_seconds", Help: "Match decision latency seconds"})

	CandidatesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "candidates_skipped_total", Help: "Candidates skipped on lock contention or availability mismatch"})
	MatchRollbacksTotal    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "match_rollbacks_total", Help: "Claims rolled back after a persistence failure"})

	OutboxPublishedTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "outbox_published_total", Help: "Outbox events acknowledged by the message bus"})
	OutboxPublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "outbox_publish_failures_total", Help: "Outbox publish attempts that failed and were requeued"})
	OutboxRescuedTotal         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "outbox_rescued_total", Help: "Stuck PUBLISHING events reset to READY"})
	OutboxPurgedTotal          = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "outbox_purged_total", Help: "DONE events purged past retention"})

	ZombieReclaimsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "zombie_reclaims_total", Help: "Busy flags repaired by reconciliation"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
