// Package metrics defines the Prometheus instrumentation shared by the
// session manager and the local-first stores.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	SessionConnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Total number of channel connection attempts",
		},
	)

	SessionReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Total number of automatic reconnect attempts",
		},
	)

	SessionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Total number of channel losses by cause",
		},
		[]string{"cause"},
	)

	CommandsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "session",
			Name:      "commands_submitted_total",
			Help:      "Total number of commands forwarded over the channel",
		},
	)

	// Transcript metrics
	TranscriptEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "transcript",
			Name:      "entries_total",
			Help:      "Total number of transcript entries appended by kind",
		},
		[]string{"kind"},
	)

	// Store metrics
	RemoteMutationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "canvas",
			Subsystem: "store",
			Name:      "remote_mutation_failures_total",
			Help:      "Total number of best-effort remote mirror calls that failed",
		},
		[]string{"store", "operation"},
	)
)
