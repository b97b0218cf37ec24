package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ChatMetrics bundles the prometheus instruments for the chat core
type ChatMetrics struct {
	ActiveConnections   prometheus.Gauge
	MessagesRelayed     *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
	ConversationsPurged prometheus.Counter
	UploadBytes         prometheus.Histogram
}

// NewChatMetrics registers the chat instruments on the default registry
func NewChatMetrics() *ChatMetrics {
	return &ChatMetrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_connections",
			Help: "Number of live websocket connections",
		}),
		MessagesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_relayed_total",
			Help: "Messages persisted and broadcast, by sender role",
		}, []string{"remitente"}),
		PersistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chat_persistence_failures_total",
			Help: "Messages dropped because the store rejected them",
		}),
		ConversationsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chat_conversations_purged_total",
			Help: "Conversations deleted via the purge endpoint",
		}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_upload_bytes",
			Help:    "Size distribution of accepted attachment uploads",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}
