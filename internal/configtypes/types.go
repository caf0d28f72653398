package configtypes

// HTTPServer configures HTTP server.
type HTTPServer struct {
	// Address to bind HTTP server to.
	Address string `mapstructure:"address" json:"address" envconfig:"address" toml:"address" yaml:"address"`
	// Port to bind HTTP server to.
	Port int `mapstructure:"port" json:"port" envconfig:"port" default:"8000" toml:"port" yaml:"port"`
	// InternalAddress to bind internal endpoints (API, metrics, health) to.
	InternalAddress string `mapstructure:"internal_address" json:"internal_address" envconfig:"internal_address" toml:"internal_address" yaml:"internal_address"`
	// InternalPort to bind internal endpoints (API, metrics, health) to. Same as Port when empty.
	InternalPort string `mapstructure:"internal_port" json:"internal_port" envconfig:"internal_port" toml:"internal_port" yaml:"internal_port"`
	// TLS configuration for HTTP server.
	TLS TLSConfig `mapstructure:"tls" json:"tls" envconfig:"tls" toml:"tls" yaml:"tls"`
	// ShutdownTimeout for graceful shutdown.
	ShutdownTimeout Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" envconfig:"shutdown_timeout" default:"30s" toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Log configures logging.
type Log struct {
	// Level is a log level: trace, debug, info, warn, error, fatal or none.
	Level string `mapstructure:"level" json:"level" envconfig:"level" default:"info" toml:"level" yaml:"level"`
	// File is a path to log file, logs go to STDOUT when empty.
	File string `mapstructure:"file" json:"file" envconfig:"file" toml:"file" yaml:"file"`
}

// Token configures connection tokens and subscription proofs.
type Token struct {
	// HMACSecretKey to sign and verify tokens.
	HMACSecretKey string `mapstructure:"hmac_secret_key" json:"hmac_secret_key" envconfig:"hmac_secret_key" toml:"hmac_secret_key" yaml:"hmac_secret_key"`
	// Algorithm used to sign tokens: HS256, HS384 or HS512.
	Algorithm string `mapstructure:"algorithm" json:"algorithm" envconfig:"algorithm" default:"HS256" toml:"algorithm" yaml:"algorithm"`
	// Issuer set into issued tokens.
	Issuer string `mapstructure:"issuer" json:"issuer" envconfig:"issuer" toml:"issuer" yaml:"issuer"`
	// ConnectionTTL is a lifetime of connection tokens.
	ConnectionTTL Duration `mapstructure:"connection_ttl" json:"connection_ttl" envconfig:"connection_ttl" default:"24h" toml:"connection_ttl" yaml:"connection_ttl"`
	// SubscriptionTTL is a lifetime of subscription proofs.
	SubscriptionTTL Duration `mapstructure:"subscription_ttl" json:"subscription_ttl" envconfig:"subscription_ttl" default:"5m" toml:"subscription_ttl" yaml:"subscription_ttl"`
}

// UserAuth configures verification of user access tokens presented to token
// endpoints.
type UserAuth struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" envconfig:"enabled" toml:"enabled" yaml:"enabled"`
	// HMACSecretKey to verify HS256/HS384/HS512 access tokens.
	HMACSecretKey string `mapstructure:"hmac_secret_key" json:"hmac_secret_key" envconfig:"hmac_secret_key" toml:"hmac_secret_key" yaml:"hmac_secret_key"`
	// JWKSPublicEndpoint to load RSA keys of access tokens from.
	JWKSPublicEndpoint string `mapstructure:"jwks_public_endpoint" json:"jwks_public_endpoint" envconfig:"jwks_public_endpoint" toml:"jwks_public_endpoint" yaml:"jwks_public_endpoint"`
	// Issuer expected in access tokens, not checked when empty.
	Issuer string `mapstructure:"issuer" json:"issuer" envconfig:"issuer" toml:"issuer" yaml:"issuer"`
	// Audience expected in access tokens, not checked when empty.
	Audience string `mapstructure:"audience" json:"audience" envconfig:"audience" toml:"audience" yaml:"audience"`
	// UserClaim contains user ID.
	UserClaim string `mapstructure:"user_claim" json:"user_claim" envconfig:"user_claim" default:"sub" toml:"user_claim" yaml:"user_claim"`
	// NameClaim is copied into connection token info when present.
	NameClaim string `mapstructure:"name_claim" json:"name_claim" envconfig:"name_claim" default:"name" toml:"name_claim" yaml:"name_claim"`
}

// Hub configures channels, history, presence and backpressure.
type Hub struct {
	// HistorySize is a capacity of per-channel history ring.
	HistorySize int `mapstructure:"history_size" json:"history_size" envconfig:"history_size" default:"100" toml:"history_size" yaml:"history_size"`
	// HistoryDisabled turns off history ring, history_size is ignored then.
	HistoryDisabled bool `mapstructure:"history_disabled" json:"history_disabled" envconfig:"history_disabled" toml:"history_disabled" yaml:"history_disabled"`
	// HistoryTTL keeps history of ephemeral channels without subscribers.
	HistoryTTL Duration `mapstructure:"history_ttl" json:"history_ttl" envconfig:"history_ttl" toml:"history_ttl" yaml:"history_ttl"`
	// IdempotencyCacheSize is a number of recent idempotency keys per channel.
	IdempotencyCacheSize int `mapstructure:"idempotency_cache_size" json:"idempotency_cache_size" envconfig:"idempotency_cache_size" default:"1000" toml:"idempotency_cache_size" yaml:"idempotency_cache_size"`
	// IdempotencyCacheTTL keeps idempotency keys of evicted ephemeral channels.
	IdempotencyCacheTTL Duration `mapstructure:"idempotency_cache_ttl" json:"idempotency_cache_ttl" envconfig:"idempotency_cache_ttl" default:"5m" toml:"idempotency_cache_ttl" yaml:"idempotency_cache_ttl"`
	// ClientQueueSize is a capacity of per-client outbound queue.
	ClientQueueSize int `mapstructure:"client_queue_size" json:"client_queue_size" envconfig:"client_queue_size" default:"256" toml:"client_queue_size" yaml:"client_queue_size"`
	// SubscribeHistory is a number of latest messages returned on subscribe by default.
	SubscribeHistory int `mapstructure:"subscribe_history" json:"subscribe_history" envconfig:"subscribe_history" toml:"subscribe_history" yaml:"subscribe_history"`
	// HeartbeatTimeout after which silent client is disconnected.
	HeartbeatTimeout Duration `mapstructure:"heartbeat_timeout" json:"heartbeat_timeout" envconfig:"heartbeat_timeout" default:"30s" toml:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	// SweepInterval of presence sweep.
	SweepInterval Duration `mapstructure:"sweep_interval" json:"sweep_interval" envconfig:"sweep_interval" default:"10s" toml:"sweep_interval" yaml:"sweep_interval"`
	// NumShards of channel and connection tables.
	NumShards int `mapstructure:"num_shards" json:"num_shards" envconfig:"num_shards" default:"64" toml:"num_shards" yaml:"num_shards"`
	// PrivilegedUsers may publish into system channels.
	PrivilegedUsers []string `mapstructure:"privileged_users" json:"privileged_users" envconfig:"privileged_users" toml:"privileged_users" yaml:"privileged_users"`
}

// HttpAPI configures server API.
type HttpAPI struct {
	Disabled      bool   `mapstructure:"disabled" json:"disabled" envconfig:"disabled" toml:"disabled" yaml:"disabled"`
	HandlerPrefix string `mapstructure:"handler_prefix" json:"handler_prefix" envconfig:"handler_prefix" default:"/api" toml:"handler_prefix" yaml:"handler_prefix"`
	Key           string `mapstructure:"key" json:"key" envconfig:"key" toml:"key" yaml:"key"`
	// External exposes API on external port.
	External bool `mapstructure:"external" json:"external" envconfig:"external" toml:"external" yaml:"external"`
	// Insecure turns off API key check.
	Insecure bool `mapstructure:"insecure" json:"insecure" envconfig:"insecure" toml:"insecure" yaml:"insecure"`
}

// TokenAPI configures client facing token endpoints.
type TokenAPI struct {
	// Enabled requires user_auth to be enabled.
	Enabled       bool   `mapstructure:"enabled" json:"enabled" envconfig:"enabled" toml:"enabled" yaml:"enabled"`
	HandlerPrefix string `mapstructure:"handler_prefix" json:"handler_prefix" envconfig:"handler_prefix" default:"/token" toml:"handler_prefix" yaml:"handler_prefix"`
}

// WebSocket configures client WebSocket transport.
type WebSocket struct {
	Disabled         bool     `mapstructure:"disabled" json:"disabled" envconfig:"disabled" toml:"disabled" yaml:"disabled"`
	HandlerPrefix    string   `mapstructure:"handler_prefix" json:"handler_prefix" envconfig:"handler_prefix" default:"/connection/websocket" toml:"handler_prefix" yaml:"handler_prefix"`
	ReadBufferSize   int      `mapstructure:"read_buffer_size" json:"read_buffer_size" envconfig:"read_buffer_size" toml:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize  int      `mapstructure:"write_buffer_size" json:"write_buffer_size" envconfig:"write_buffer_size" toml:"write_buffer_size" yaml:"write_buffer_size"`
	WriteTimeout     Duration `mapstructure:"write_timeout" json:"write_timeout" envconfig:"write_timeout" default:"1s" toml:"write_timeout" yaml:"write_timeout"`
	MessageSizeLimit int      `mapstructure:"message_size_limit" json:"message_size_limit" envconfig:"message_size_limit" default:"65536" toml:"message_size_limit" yaml:"message_size_limit"`
	PingInterval     Duration `mapstructure:"ping_interval" json:"ping_interval" envconfig:"ping_interval" default:"25s" toml:"ping_interval" yaml:"ping_interval"`
	// AllowedOrigins is a list of glob patterns, same origin required when empty.
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins" envconfig:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins"`
	// CommandRateLimit is a number of commands per second allowed for one connection, zero disables limit.
	CommandRateLimit float64 `mapstructure:"command_rate_limit" json:"command_rate_limit" envconfig:"command_rate_limit" toml:"command_rate_limit" yaml:"command_rate_limit"`
	// CommandRateBurst is a burst of command rate limiter.
	CommandRateBurst int `mapstructure:"command_rate_burst" json:"command_rate_burst" envconfig:"command_rate_burst" default:"20" toml:"command_rate_burst" yaml:"command_rate_burst"`
	// ConnectionLimit limits number of concurrent connections, zero means no limit.
	ConnectionLimit int `mapstructure:"connection_limit" json:"connection_limit" envconfig:"connection_limit" toml:"connection_limit" yaml:"connection_limit"`
}

// Store types.
const (
	StoreTypeMemory      = "memory"
	StoreTypePostgresql  = "postgresql"
	StoreTypeRedisStream = "redis_stream"
	StoreTypeKafka       = "kafka"
)

// Store configures durable message log. Several types may be combined.
type Store struct {
	// Types of stores to persist messages into.
	Types       []string         `mapstructure:"types" json:"types" envconfig:"types" toml:"types" yaml:"types"`
	Postgresql  PostgresStore    `mapstructure:"postgresql" json:"postgresql" envconfig:"postgresql" toml:"postgresql" yaml:"postgresql"`
	RedisStream RedisStreamStore `mapstructure:"redis_stream" json:"redis_stream" envconfig:"redis_stream" toml:"redis_stream" yaml:"redis_stream"`
	Kafka       KafkaStore       `mapstructure:"kafka" json:"kafka" envconfig:"kafka" toml:"kafka" yaml:"kafka"`
}

// PostgresStore configures PostgreSQL message store and membership source.
type PostgresStore struct {
	DSN string `mapstructure:"dsn" json:"dsn" envconfig:"dsn" toml:"dsn" yaml:"dsn"`
	// MessagesTable to insert messages into.
	MessagesTable string `mapstructure:"messages_table" json:"messages_table" envconfig:"messages_table" default:"chathub_messages" toml:"messages_table" yaml:"messages_table"`
	// MembersTable with (chat_id, user_id) rows.
	MembersTable string `mapstructure:"members_table" json:"members_table" envconfig:"members_table" default:"chat_users" toml:"members_table" yaml:"members_table"`
	// EnsureSchema creates messages table on start.
	EnsureSchema bool `mapstructure:"ensure_schema" json:"ensure_schema" envconfig:"ensure_schema" toml:"ensure_schema" yaml:"ensure_schema"`
	// MaxConns in pool, pgx default when zero.
	MaxConns int32     `mapstructure:"max_conns" json:"max_conns" envconfig:"max_conns" toml:"max_conns" yaml:"max_conns"`
	TLS      TLSConfig `mapstructure:"tls" json:"tls" envconfig:"tls" toml:"tls" yaml:"tls"`
}

// RedisStreamStore configures Redis Stream message store.
type RedisStreamStore struct {
	Address  []string `mapstructure:"address" json:"address" envconfig:"address" default:"127.0.0.1:6379" toml:"address" yaml:"address"`
	User     string   `mapstructure:"user" json:"user" envconfig:"user" toml:"user" yaml:"user"`
	Password string   `mapstructure:"password" json:"password" envconfig:"password" toml:"password" yaml:"password"`
	DB       int      `mapstructure:"db" json:"db" envconfig:"db" toml:"db" yaml:"db"`
	// StreamPrefix is prepended to channel name to get stream key.
	StreamPrefix string `mapstructure:"stream_prefix" json:"stream_prefix" envconfig:"stream_prefix" default:"chathub.stream." toml:"stream_prefix" yaml:"stream_prefix"`
	// MaxLength caps stream approximately, unlimited when zero.
	MaxLength      int64     `mapstructure:"max_length" json:"max_length" envconfig:"max_length" default:"10000" toml:"max_length" yaml:"max_length"`
	ConnectTimeout Duration  `mapstructure:"connect_timeout" json:"connect_timeout" envconfig:"connect_timeout" default:"1s" toml:"connect_timeout" yaml:"connect_timeout"`
	TLS            TLSConfig `mapstructure:"tls" json:"tls" envconfig:"tls" toml:"tls" yaml:"tls"`
}

// KafkaStore configures Kafka message store.
type KafkaStore struct {
	Brokers       []string  `mapstructure:"brokers" json:"brokers" envconfig:"brokers" toml:"brokers" yaml:"brokers"`
	Topic         string    `mapstructure:"topic" json:"topic" envconfig:"topic" default:"chathub.messages" toml:"topic" yaml:"topic"`
	SASLMechanism string    `mapstructure:"sasl_mechanism" json:"sasl_mechanism" envconfig:"sasl_mechanism" toml:"sasl_mechanism" yaml:"sasl_mechanism"`
	SASLUser      string    `mapstructure:"sasl_user" json:"sasl_user" envconfig:"sasl_user" toml:"sasl_user" yaml:"sasl_user"`
	SASLPassword  string    `mapstructure:"sasl_password" json:"sasl_password" envconfig:"sasl_password" toml:"sasl_password" yaml:"sasl_password"`
	TLS           TLSConfig `mapstructure:"tls" json:"tls" envconfig:"tls" toml:"tls" yaml:"tls"`
}

// Membership source types.
const (
	MembershipTypePostgresql = "postgresql"
	MembershipTypeStatic     = "static"
)

// Membership configures chat membership source.
type Membership struct {
	// Type is postgresql or static.
	Type string `mapstructure:"type" json:"type" envconfig:"type" default:"static" toml:"type" yaml:"type"`
	// Static maps chat ID to comma separated user IDs.
	Static MapStringString `mapstructure:"static" json:"static" envconfig:"static" toml:"static" yaml:"static"`
}

// Prometheus configures metrics endpoint.
type Prometheus struct {
	Enabled       bool            `mapstructure:"enabled" json:"enabled" envconfig:"enabled" toml:"enabled" yaml:"enabled"`
	HandlerPrefix string          `mapstructure:"handler_prefix" json:"handler_prefix" envconfig:"handler_prefix" default:"/metrics" toml:"handler_prefix" yaml:"handler_prefix"`
	Namespace     string          `mapstructure:"namespace" json:"namespace" envconfig:"namespace" default:"chathub" toml:"namespace" yaml:"namespace"`
	ConstLabels   MapStringString `mapstructure:"const_labels" json:"const_labels" envconfig:"const_labels" toml:"const_labels" yaml:"const_labels"`
	// InstrumentHTTPHandlers counts incoming HTTP requests.
	InstrumentHTTPHandlers bool `mapstructure:"instrument_http_handlers" json:"instrument_http_handlers" envconfig:"instrument_http_handlers" toml:"instrument_http_handlers" yaml:"instrument_http_handlers"`
}

// Graphite configures metrics export to Graphite.
type Graphite struct {
	Enabled  bool     `mapstructure:"enabled" json:"enabled" envconfig:"enabled" toml:"enabled" yaml:"enabled"`
	Host     string   `mapstructure:"host" json:"host" envconfig:"host" default:"localhost" toml:"host" yaml:"host"`
	Port     int      `mapstructure:"port" json:"port" envconfig:"port" default:"2003" toml:"port" yaml:"port"`
	Prefix   string   `mapstructure:"prefix" json:"prefix" envconfig:"prefix" default:"chathub" toml:"prefix" yaml:"prefix"`
	Interval Duration `mapstructure:"interval" json:"interval" envconfig:"interval" default:"10s" toml:"interval" yaml:"interval"`
	Tags     bool     `mapstructure:"tags" json:"tags" envconfig:"tags" toml:"tags" yaml:"tags"`
}

// Health configures health check endpoint.
type Health struct {
	Enabled       bool   `mapstructure:"enabled" json:"enabled" envconfig:"enabled" toml:"enabled" yaml:"enabled"`
	HandlerPrefix string `mapstructure:"handler_prefix" json:"handler_prefix" envconfig:"handler_prefix" default:"/health" toml:"handler_prefix" yaml:"handler_prefix"`
}

// OpenTelemetry configures tracing.
type OpenTelemetry struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" envconfig:"enabled" toml:"enabled" yaml:"enabled"`
	// API traces server API requests.
	API bool `mapstructure:"api" json:"api" envconfig:"api" toml:"api" yaml:"api"`
}
