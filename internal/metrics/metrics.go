package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backfill, live poll and delivery counters, partitioned by contract and event.

var (
	// Fetcher
	FetchWindowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "fetcher",
		Name:      "windows_total",
		Help:      "Total backfill windows processed",
	})

	FetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "fetcher",
		Name:      "retries_total",
		Help:      "Total failed historical queries that were retried or dropped",
	}, []string{"contract", "event"})

	FetchDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "fetcher",
		Name:      "dropped_total",
		Help:      "Total (contract, event, window) queries dropped after retry exhaustion",
	}, []string{"contract", "event"})

	FetchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "fetcher",
		Name:      "events_total",
		Help:      "Total historical events retrieved",
	}, []string{"contract", "event"})

	// Monitor
	PollIterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "monitor",
		Name:      "poll_iterations_total",
		Help:      "Total live poll iterations",
	})

	PollErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "monitor",
		Name:      "poll_errors_total",
		Help:      "Total failed filter polls",
	}, []string{"contract", "event"})

	EventsObservedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "monitor",
		Name:      "events_observed_total",
		Help:      "Total events routed through the handler",
	}, []string{"contract", "event", "outcome"})

	LastSeenBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "opmonitor",
		Subsystem: "monitor",
		Name:      "last_seen_block",
		Help:      "Highest block number observed by the live poller",
	})

	ReconnectAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "monitor",
		Name:      "reconnect_attempts_total",
		Help:      "Total reconnection attempts",
	}, []string{"result"})

	// Notifications
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "notify",
		Name:      "sends_total",
		Help:      "Total notification sends per channel",
	}, []string{"channel", "result"})

	// Storage
	StoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opmonitor",
		Subsystem: "storage",
		Name:      "errors_total",
		Help:      "Total best-effort storage failures",
	}, []string{"sink"})
)
