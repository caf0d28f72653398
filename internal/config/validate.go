package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/origin"
)

var validStoreTypes = []string{
	configtypes.StoreTypeMemory,
	configtypes.StoreTypePostgresql,
	configtypes.StoreTypeRedisStream,
	configtypes.StoreTypeKafka,
}

// Validate validates config and returns error if problems found.
func (c Config) Validate() error {
	if err := validateToken(c.Token); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	if err := validateHub(c.Hub); err != nil {
		return fmt.Errorf("hub: %w", err)
	}
	if err := validateStore(c.Store); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	switch c.Membership.Type {
	case configtypes.MembershipTypeStatic:
	case configtypes.MembershipTypePostgresql:
		if c.Store.Postgresql.DSN == "" {
			return errors.New("membership: postgresql type requires store.postgresql.dsn")
		}
	default:
		return fmt.Errorf("membership: unknown type %q", c.Membership.Type)
	}
	if !c.HttpAPI.Disabled && !c.HttpAPI.Insecure && c.HttpAPI.Key == "" {
		return errors.New("http_api: key required, set http_api.insecure to run without it")
	}
	if c.TokenAPI.Enabled {
		if !c.UserAuth.Enabled {
			return errors.New("token_api: requires user_auth to be enabled")
		}
		if c.UserAuth.HMACSecretKey == "" && c.UserAuth.JWKSPublicEndpoint == "" {
			return errors.New("user_auth: hmac_secret_key or jwks_public_endpoint required")
		}
	}
	if !c.WebSocket.Disabled {
		if _, err := origin.NewPatternChecker(c.WebSocket.AllowedOrigins); err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		if c.WebSocket.PingInterval.ToDuration() >= c.Hub.HeartbeatTimeout.ToDuration() {
			return errors.New("websocket: ping_interval must be less than hub.heartbeat_timeout")
		}
		if c.WebSocket.CommandRateLimit < 0 || c.WebSocket.ConnectionLimit < 0 {
			return errors.New("websocket: limits must not be negative")
		}
	}
	if c.Graphite.Enabled && c.Graphite.Interval <= 0 {
		return errors.New("graphite: interval must be positive")
	}
	return nil
}

func validateToken(c configtypes.Token) error {
	if c.HMACSecretKey == "" {
		return errors.New("hmac_secret_key required")
	}
	switch c.Algorithm {
	case "", "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported algorithm %q", c.Algorithm)
	}
	if c.ConnectionTTL <= 0 || c.SubscriptionTTL <= 0 {
		return errors.New("connection_ttl and subscription_ttl must be positive")
	}
	return nil
}

func validateHub(c configtypes.Hub) error {
	if c.HistorySize < 0 || c.IdempotencyCacheSize < 0 || c.ClientQueueSize < 0 || c.SubscribeHistory < 0 || c.NumShards < 0 {
		return errors.New("sizes must not be negative")
	}
	if c.HistoryTTL < 0 || c.IdempotencyCacheTTL < 0 {
		return errors.New("history_ttl and idempotency_cache_ttl must not be negative")
	}
	if c.SweepInterval <= 0 || c.HeartbeatTimeout <= c.SweepInterval {
		return errors.New("heartbeat_timeout must be greater than positive sweep_interval")
	}
	return nil
}

func validateStore(c configtypes.Store) error {
	seen := make([]string, 0, len(c.Types))
	for _, t := range c.Types {
		if !slices.Contains(validStoreTypes, t) {
			return fmt.Errorf("unknown type %q", t)
		}
		if slices.Contains(seen, t) {
			return fmt.Errorf("duplicate type %q", t)
		}
		seen = append(seen, t)
		switch t {
		case configtypes.StoreTypePostgresql:
			if c.Postgresql.DSN == "" {
				return errors.New("postgresql: dsn required")
			}
		case configtypes.StoreTypeRedisStream:
			if len(c.RedisStream.Address) == 0 {
				return errors.New("redis_stream: address required")
			}
		case configtypes.StoreTypeKafka:
			if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
				return errors.New("kafka: brokers and topic required")
			}
		}
	}
	return nil
}
