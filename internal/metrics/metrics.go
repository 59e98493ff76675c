// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nekos_schema_records_appended_total",
		Help: "Schema-change records admitted to the registry.",
	}, []string{"lineage"})

	AppendRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nekos_schema_append_rejected_total",
		Help: "Append attempts rejected, by reason (ordering, validation, error).",
	}, []string{"reason"})

	RecordsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nekos_schema_records_applied_total",
		Help: "Schema-change records applied to the target store.",
	}, []string{"lineage"})

	ApplyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nekos_schema_apply_failures_total",
		Help: "Record applications rolled back after a store error.",
	}, []string{"lineage"})

	ApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nekos_schema_apply_duration_seconds",
		Help:    "Time taken to bring one lineage up to its tip.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nekos_ratelimited_requests_total",
		Help: "Requests denied by the rate limiter, by policy group.",
	}, []string{"group"})
)
