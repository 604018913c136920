// Package metrics exposes Prometheus counters for the bus, stream hub
// and workflow executor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesPublished counts accepted bus messages by type.
	MessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigator_bus_messages_published_total",
		Help: "Messages accepted by the A2A bus, by message type.",
	}, []string{"type"})

	// MessagesRejected counts bus rejections by error kind.
	MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigator_bus_messages_rejected_total",
		Help: "Messages rejected by the A2A bus, by error kind.",
	}, []string{"kind"})

	// MessagesExpired counts messages dropped at receive time for TTL expiry.
	MessagesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navigator_bus_messages_expired_total",
		Help: "Messages dropped at receive time because their TTL passed.",
	})

	// MessagesDroppedFull counts messages dropped because a recipient queue was full.
	MessagesDroppedFull = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navigator_bus_messages_dropped_full_total",
		Help: "Messages dropped because the recipient queue was at capacity.",
	})

	// EventsDropped counts stream events evicted from a full session buffer.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navigator_stream_events_dropped_total",
		Help: "Progress events evicted from a full session buffer.",
	})

	// BufferOverflows counts buffer_overflow markers inserted into streams.
	BufferOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "navigator_stream_buffer_overflows_total",
		Help: "Overflow markers inserted into session event streams.",
	})

	// WorkflowsFinished counts terminated workflows by terminal status.
	WorkflowsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "navigator_workflows_finished_total",
		Help: "Workflows reaching a terminal status, by status.",
	}, []string{"status"})
)
