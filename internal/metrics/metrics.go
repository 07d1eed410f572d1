package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsflow_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentsflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AgentInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsflow_agent_invocations_total",
			Help: "Total number of agent invocations by agent and outcome.",
		},
		[]string{"agent_id", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentsflow_llm_request_duration_seconds",
			Help:    "LLM completion call duration in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	NotificationsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsflow_notifications_published_total",
			Help: "Total number of notification events published, by event type.",
		},
		[]string{"event_type"},
	)

	NotificationsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentsflow_notifications_delivered_total",
			Help: "Total number of notification frames delivered to WebSocket clients.",
		},
	)

	NotificationsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentsflow_notifications_dropped_total",
			Help: "Total number of notification events dropped, by reason.",
		},
		[]string{"reason"},
	)

	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentsflow_websocket_connections",
			Help: "Number of currently connected WebSocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AgentInvocationsTotal,
		LLMRequestDuration,
		NotificationsPublishedTotal,
		NotificationsDeliveredTotal,
		NotificationsDroppedTotal,
		WebSocketConnections,
	)
}
