// Package metrics 实时模块的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RelaySessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "socialnet",
		Subsystem: "relay",
		Name:      "sessions",
		Help:      "Open realtime sessions by socket kind.",
	}, []string{"kind"})

	RelayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialnet",
		Subsystem: "relay",
		Name:      "events_published_total",
		Help:      "Relay events published, by status.",
	}, []string{"status"})

	RelayDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "socialnet",
		Subsystem: "relay",
		Name:      "events_dropped_total",
		Help:      "Pending events discarded because a session queue was full.",
	})

	RelayInboundRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialnet",
		Subsystem: "relay",
		Name:      "inbound_rejected_total",
		Help:      "Client frames answered with an error frame, by reason.",
	}, []string{"reason"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialnet",
		Subsystem: "notifications",
		Name:      "created_total",
		Help:      "Notifications created, by type.",
	}, []string{"ntype"})

	NotificationsCollapsed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "socialnet",
		Subsystem: "notifications",
		Name:      "collapsed_total",
		Help:      "Repeated reactions merged into an existing notification.",
	})

	DirectoryCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialnet",
		Subsystem: "directory",
		Name:      "cache_lookups_total",
		Help:      "User snapshot cache lookups, by result (hit, miss).",
	}, []string{"result"})

	BroadcastFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "socialnet",
		Subsystem: "notifications",
		Name:      "broadcast_fanout_seconds",
		Help:      "Latency from broadcast enqueue to fan-out completion.",
		Buckets:   prometheus.DefBuckets,
	})
)
