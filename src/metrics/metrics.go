// Package metrics holds the Prometheus collectors of the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ohlc"

var (
	TradesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "trades_processed_total",
		Help:      "Trades applied by the aggregation engine",
	})

	BarUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "bar_updates_total",
		Help:      "Bar updates emitted by the aggregation engine",
	}, []string{"kind"})

	DedupDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hub",
		Name:      "dedup_dropped_total",
		Help:      "Bar updates suppressed because nothing visible changed",
	})

	PushesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hub",
		Name:      "pushes_sent_total",
		Help:      "Bar pushes delivered to client send queues",
	})

	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hub",
		Name:      "push_failures_total",
		Help:      "Bar pushes skipped because the client was gone or too slow",
	})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "connected_clients",
		Help:      "Currently connected websocket clients",
	})

	TradesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "source",
		Name:      "trades_rejected_total",
		Help:      "Trade records rejected by the ingestion source",
	}, []string{"source"})

	BarsJournaled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "bars_journaled_total",
		Help:      "Closed bars written to the session journal",
	})
)
