package hub

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/windi-messenger/chathub/internal/auth"
	"github.com/windi-messenger/chathub/internal/token"
)

const (
	DefaultHistorySize      = 100
	DefaultKeyCacheSize     = 1000
	DefaultKeyCacheTTL      = 5 * time.Minute
	DefaultClientQueueSize  = 256
	DefaultHeartbeatTimeout = 30 * time.Second
	DefaultSweepInterval    = 10 * time.Second
	DefaultNumShards        = 64
)

// TokenVerifier verifies connection tokens.
type TokenVerifier interface {
	Verify(token string) (token.Claims, error)
}

// Authorizer decides on channel access. Implemented by auth.Gate.
type Authorizer interface {
	AuthorizeConnect(s auth.Subject) error
	AuthorizeSubscribe(ctx context.Context, s auth.Subject, ch string, proof string) error
	AuthorizePublish(ctx context.Context, s auth.Subject, ch string) error
}

// Store is a durable message log. Persist is called on every publication
// before delivery, in sequence order per channel.
type Store interface {
	Persist(ctx context.Context, m *Message) error
}

// Config of Hub.
type Config struct {
	Verifier   TokenVerifier
	Authorizer Authorizer
	// Store is optional, history ring is the only storage when nil.
	Store Store
	// Logger used by hub, global zerolog logger by default.
	Logger *zerolog.Logger

	// HistorySize is a capacity of per-channel history ring. Zero means
	// DefaultHistorySize, use HistoryDisabled to keep no history.
	HistorySize int
	// HistoryDisabled turns history ring off. Sequence numbers and
	// idempotency keys still work.
	HistoryDisabled bool
	// HistoryTTL is how long ephemeral channel without subscribers keeps its
	// history. Zero means evict right after last subscriber left.
	HistoryTTL time.Duration
	// KeyCacheSize is a number of recent idempotency keys kept per channel.
	KeyCacheSize int
	// KeyCacheTTL is how long idempotency keys of evicted ephemeral channel
	// are remembered.
	KeyCacheTTL time.Duration
	// ClientQueueSize is a capacity of per-client outbound queue. Client is
	// disconnected when it is full.
	ClientQueueSize int
	// SubscribeHistory is a number of latest messages returned on subscribe
	// when caller does not ask for a specific number.
	SubscribeHistory int
	// HeartbeatTimeout after which silent client is disconnected.
	HeartbeatTimeout time.Duration
	// SweepInterval of presence sweep.
	SweepInterval time.Duration
	// NumShards of channel and connection tables.
	NumShards int
	// Now is a clock, time.Now by default.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.HistorySize == 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.KeyCacheSize == 0 {
		c.KeyCacheSize = DefaultKeyCacheSize
	}
	if c.KeyCacheTTL == 0 {
		c.KeyCacheTTL = DefaultKeyCacheTTL
	}
	if c.ClientQueueSize == 0 {
		c.ClientQueueSize = DefaultClientQueueSize
	}
	if c.HeartbeatTimeout == 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.NumShards == 0 {
		c.NumShards = DefaultNumShards
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c Config) validate() error {
	if c.Verifier == nil {
		return errors.New("token verifier required")
	}
	if c.Authorizer == nil {
		return errors.New("authorizer required")
	}
	if c.HistorySize < 0 {
		return errors.New("history size must not be negative")
	}
	if c.KeyCacheSize < 0 {
		return errors.New("idempotency key cache size must not be negative")
	}
	if c.ClientQueueSize < 0 {
		return errors.New("client queue size must not be negative")
	}
	if c.KeyCacheTTL < 0 {
		return errors.New("idempotency key cache TTL must not be negative")
	}
	if c.HistoryTTL < 0 {
		return errors.New("history TTL must not be negative")
	}
	if c.HeartbeatTimeout <= c.SweepInterval {
		return errors.New("heartbeat timeout must be greater than sweep interval")
	}
	return nil
}
