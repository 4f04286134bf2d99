package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	loadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nnevald",
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Total sessions loaded",
		},
	)

	unloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nnevald",
			Subsystem: "session",
			Name:      "unloads_total",
			Help:      "Total sessions unloaded",
		},
	)

	evaluationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nnevald",
			Subsystem: "session",
			Name:      "evaluations_total",
			Help:      "Total batches evaluated",
		},
	)

	evaluationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nnevald",
			Subsystem: "session",
			Name:      "evaluation_failures_total",
			Help:      "Total batch evaluations that returned an error",
		},
	)

	positionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nnevald",
			Subsystem: "session",
			Name:      "positions_total",
			Help:      "Total positions scored",
		},
	)

	batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nnevald",
			Subsystem: "session",
			Name:      "batch_size",
			Help:      "Positions per evaluated batch",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 11),
		},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nnevald",
			Subsystem: "session",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of batch evaluations",
			Buckets:   prometheus.DefBuckets,
		},
	)

	occupiedSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nnevald",
			Subsystem: "session",
			Name:      "occupied_slots",
			Help:      "Slots currently holding a session",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, unloadsTotal, evaluationsTotal,
		evaluationFailures, positionsTotal, batchSize, evaluationDuration,
		occupiedSlots)
}
