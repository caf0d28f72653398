package metrics

import "github.com/prometheus/client_golang/prometheus"

// Hub metrics.
var (
	HubClients              prometheus.Gauge
	HubChannels             prometheus.Gauge
	HubSubscriptions        prometheus.Gauge
	HubMessagesPublished    *prometheus.CounterVec
	HubMessagesDeduplicated *prometheus.CounterVec
	HubPublishErrors        *prometheus.CounterVec
	HubPermissionDenied     *prometheus.CounterVec
	HubSlowClients          prometheus.Counter
	HubPresenceExpired      prometheus.Counter
	HubDisconnects          *prometheus.CounterVec
)

// API metrics - exported for use by api package
var (
	APICommandErrorsTotal       *prometheus.CounterVec
	APICommandDurationSummary   *prometheus.SummaryVec
	APICommandDurationHistogram *prometheus.HistogramVec
)

// Store metrics.
var (
	StorePersistDuration *prometheus.HistogramVec
	StorePersistErrors   *prometheus.CounterVec
)

// Transport metrics.
var (
	TransportMessagesSent     *prometheus.CounterVec
	TransportMessagesReceived *prometheus.CounterVec
)

// Middleware metrics - exported for use by middleware package
var (
	ConnLimitReached  prometheus.Counter
	HTTPRequestsTotal *prometheus.CounterVec
)
