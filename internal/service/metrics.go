package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// searchRequests counts searches by mode and outcome.
	searchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// searchDuration observes end-to-end search latency including reconciliation.
	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "Duration of search requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// suggestTierResults counts which suggestion tier produced the answer.
	suggestTierResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_suggest_tier_total",
			Help: "Total number of suggestion requests answered by each tier",
		},
		[]string{"tier"},
	)

	// suggestTierFailures counts swallowed backend failures per suggestion tier.
	suggestTierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_suggest_tier_failures_total",
			Help: "Total number of backend failures absorbed by a suggestion tier",
		},
		[]string{"tier"},
	)

	// staleHits counts hits whose authoritative record was missing at reconcile time.
	staleHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_reconcile_stale_hits_total",
			Help: "Total number of hits whose product was missing from the primary store",
		},
	)

	// syncedDocuments counts index writes by operation.
	syncedDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_sync_documents_total",
			Help: "Total number of documents written to or removed from the index",
		},
		[]string{"operation"},
	)
)
