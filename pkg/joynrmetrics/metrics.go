// Package joynrmetrics defines the Prometheus collectors exported by
// a joynr process, in the promauto.NewXVec style used throughout the
// teacher's controller packages (e.g.
// controller/proxy-injector/metrics.go).
package joynrmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const labelKind = "kind"

var (
	// RequestsReceived counts inbound messages of every kind, labelled
	// by message kind (C6).
	RequestsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joynr_messages_received_total",
		Help: "Number of dispatcher messages received, by kind.",
	}, []string{labelKind})

	// RepliesDelivered counts replies actually delivered to a waiting
	// caller (C1), versus ones dropped for lacking a caller.
	RepliesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "joynr_replies_delivered_total",
		Help: "Number of replies matched to a waiting reply caller.",
	})

	// RepliesDropped counts replies that arrived with no matching
	// caller (already delivered, expired, or unknown).
	RepliesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "joynr_replies_dropped_total",
		Help: "Number of replies dropped for lacking a reply caller.",
	})

	// PublicationsMissed counts PublicationMissed alerts raised by the
	// subscription manager (C4).
	PublicationsMissed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "joynr_publications_missed_total",
		Help: "Number of missed-publication alerts raised.",
	})

	// PendingLookups tracks the live size of the capabilities
	// directory's pending-lookup coalescing map (C7), called out as a
	// leak-indicator metric: it should return to zero between bursts of
	// global lookups, since every registered callback is resolved
	// exactly once.
	PendingLookups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "joynr_pending_lookups",
		Help: "Number of global (domain, interface) lookups awaiting a result or local resolution.",
	})

	// LocalCapabilities and CachedCapabilities track directory size.
	LocalCapabilities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "joynr_local_capabilities",
		Help: "Number of providers registered locally.",
	})
	CachedCapabilities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "joynr_cached_capabilities",
		Help: "Number of entries in the global lookup cache.",
	})

	// WorkerPoolQueueDepth tracks the dispatcher's worker pool queue
	// occupancy (C8).
	WorkerPoolQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "joynr_worker_pool_queue_depth",
		Help: "Number of tasks queued in the dispatcher's worker pool.",
	})
)
