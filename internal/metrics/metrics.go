package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultMetricsNamespace = "chathub"

// Config contains metrics configuration.
type Config struct {
	// Namespace is the prometheus namespace for all metrics. If empty, defaults to "chathub".
	Namespace string
	// ConstLabels are labels that will be added to all metrics as constant labels.
	ConstLabels map[string]string
	// Registerer is the prometheus registerer to use. If nil, prometheus.DefaultRegisterer is used.
	Registerer prometheus.Registerer
}

// Registry holds all metrics.
type Registry struct {
	config Config

	hubClients              prometheus.Gauge
	hubChannels             prometheus.Gauge
	hubSubscriptions        prometheus.Gauge
	hubMessagesPublished    *prometheus.CounterVec
	hubMessagesDeduplicated *prometheus.CounterVec
	hubPublishErrors        *prometheus.CounterVec
	hubPermissionDenied     *prometheus.CounterVec
	hubSlowClients          prometheus.Counter
	hubPresenceExpired      prometheus.Counter
	hubDisconnects          *prometheus.CounterVec

	apiCommandErrorsTotal       *prometheus.CounterVec
	apiCommandDurationSummary   *prometheus.SummaryVec
	apiCommandDurationHistogram *prometheus.HistogramVec

	storePersistDuration *prometheus.HistogramVec
	storePersistErrors   *prometheus.CounterVec

	transportMessagesSent     *prometheus.CounterVec
	transportMessagesReceived *prometheus.CounterVec

	connLimitReached  prometheus.Counter
	httpRequestsTotal *prometheus.CounterVec
}

func init() {
	// Unregistered collectors until Init called, so packages are usable in tests.
	reg := build(Config{})
	reg.export()
}

// Init initializes the metrics registry with the provided configuration.
// It creates all metrics and registers them with the provided registerer.
// If registerer is nil, prometheus.DefaultRegisterer is used.
func Init(cfg Config) error {
	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	reg.export()
	return nil
}

func (m *Registry) export() {
	HubClients = m.hubClients
	HubChannels = m.hubChannels
	HubSubscriptions = m.hubSubscriptions
	HubMessagesPublished = m.hubMessagesPublished
	HubMessagesDeduplicated = m.hubMessagesDeduplicated
	HubPublishErrors = m.hubPublishErrors
	HubPermissionDenied = m.hubPermissionDenied
	HubSlowClients = m.hubSlowClients
	HubPresenceExpired = m.hubPresenceExpired
	HubDisconnects = m.hubDisconnects

	APICommandErrorsTotal = m.apiCommandErrorsTotal
	APICommandDurationSummary = m.apiCommandDurationSummary
	APICommandDurationHistogram = m.apiCommandDurationHistogram

	StorePersistDuration = m.storePersistDuration
	StorePersistErrors = m.storePersistErrors

	TransportMessagesSent = m.transportMessagesSent
	TransportMessagesReceived = m.transportMessagesReceived

	ConnLimitReached = m.connLimitReached
	HTTPRequestsTotal = m.httpRequestsTotal
}

func build(cfg Config) *Registry {
	metricsNamespace := cfg.Namespace
	if metricsNamespace == "" {
		metricsNamespace = defaultMetricsNamespace
	}
	constLabels := prometheus.Labels(cfg.ConstLabels)

	m := &Registry{
		config: cfg,
	}

	m.hubClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "num_clients",
		Help:        "Number of connected clients.",
		ConstLabels: constLabels,
	})
	m.hubChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "num_channels",
		Help:        "Number of channels in registry.",
		ConstLabels: constLabels,
	})
	m.hubSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "num_subscriptions",
		Help:        "Number of active client subscriptions.",
		ConstLabels: constLabels,
	})
	m.hubMessagesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "messages_published_total",
		Help:        "Number of published messages.",
		ConstLabels: constLabels,
	}, []string{"namespace"})
	m.hubMessagesDeduplicated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "messages_deduplicated_total",
		Help:        "Number of publications answered from idempotency key cache.",
		ConstLabels: constLabels,
	}, []string{"namespace"})
	m.hubPublishErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "publish_errors_total",
		Help:        "Number of publications rejected due to store errors.",
		ConstLabels: constLabels,
	}, []string{"namespace"})
	m.hubPermissionDenied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "permission_denied_total",
		Help:        "Number of denied operations.",
		ConstLabels: constLabels,
	}, []string{"op"})
	m.hubSlowClients = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "slow_clients_total",
		Help:        "Number of clients disconnected due to full outbound queue.",
		ConstLabels: constLabels,
	})
	m.hubPresenceExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "presence_expired_total",
		Help:        "Number of clients disconnected due to heartbeat timeout.",
		ConstLabels: constLabels,
	})
	m.hubDisconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "hub",
		Name:        "disconnects_total",
		Help:        "Number of client disconnects.",
		ConstLabels: constLabels,
	}, []string{"reason"})

	m.apiCommandErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "api",
		Name:        "command_errors_total",
		Help:        "Error count by API command.",
		ConstLabels: constLabels,
	}, []string{"protocol", "method", "error"})
	m.apiCommandDurationSummary = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "api",
		Name:        "command_duration_seconds",
		Objectives:  map[float64]float64{0.5: 0.05, 0.99: 0.001, 0.999: 0.0001},
		Help:        "Duration of API per command.",
		ConstLabels: constLabels,
	}, []string{"protocol", "method"})
	m.apiCommandDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "api",
		Buckets:     prometheus.DefBuckets,
		Name:        "command_duration_seconds_histogram",
		Help:        "Histogram of duration of API per command.",
		ConstLabels: constLabels,
	}, []string{"protocol", "method"})

	m.storePersistDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "store",
		Buckets:     prometheus.DefBuckets,
		Name:        "persist_duration_seconds",
		Help:        "Histogram of message persist duration.",
		ConstLabels: constLabels,
	}, []string{"store"})
	m.storePersistErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "store",
		Name:        "persist_errors_total",
		Help:        "Number of message persist errors.",
		ConstLabels: constLabels,
	}, []string{"store"})

	m.transportMessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "transport",
		Name:        "messages_sent",
		Help:        "Number of messages sent to client connections over specific transport.",
		ConstLabels: constLabels,
	}, []string{"transport", "type"})
	m.transportMessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "transport",
		Name:        "messages_received",
		Help:        "Number of messages received from client connections over specific transport.",
		ConstLabels: constLabels,
	}, []string{"transport", "method"})

	m.connLimitReached = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Subsystem:   "node",
		Name:        "client_connection_limit",
		Help:        "Number of refused requests due to client connection limit.",
		ConstLabels: constLabels,
	})
	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "node",
			Name:        "incoming_http_requests_total",
			Help:        "Number of incoming HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"path", "method", "status"},
	)
	return m
}

func newRegistry(cfg Config) (*Registry, error) {
	registerer := cfg.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := build(cfg)

	var alreadyRegistered prometheus.AlreadyRegisteredError

	collectors := []prometheus.Collector{
		m.hubClients,
		m.hubChannels,
		m.hubSubscriptions,
		m.hubMessagesPublished,
		m.hubMessagesDeduplicated,
		m.hubPublishErrors,
		m.hubPermissionDenied,
		m.hubSlowClients,
		m.hubPresenceExpired,
		m.hubDisconnects,
		m.apiCommandErrorsTotal,
		m.apiCommandDurationSummary,
		m.apiCommandDurationHistogram,
		m.storePersistDuration,
		m.storePersistErrors,
		m.transportMessagesSent,
		m.transportMessagesReceived,
		m.connLimitReached,
		m.httpRequestsTotal,
	}

	for _, collector := range collectors {
		err := registerer.Register(collector)
		if err != nil {
			// Ignore if already registered (allows re-initialization in tests)
			if !errors.As(err, &alreadyRegistered) {
				return nil, err
			}
		}
	}

	return m, nil
}
