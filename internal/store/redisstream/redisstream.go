// Package redisstream appends messages to per-channel Redis Streams.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/hub"
)

type Config = configtypes.RedisStreamStore

// Store writes every message with XADD into stream named after channel.
type Store struct {
	client rueidis.Client
	config Config
}

// New creates Redis client and pings server.
func New(ctx context.Context, config Config) (*Store, error) {
	if len(config.Address) == 0 {
		return nil, errors.New("redis address is required")
	}
	connectTimeout := config.ConnectTimeout.ToDuration()
	if connectTimeout == 0 {
		connectTimeout = time.Second
	}
	opts := rueidis.ClientOption{
		InitAddress:  config.Address,
		Username:     config.User,
		Password:     config.Password,
		SelectDB:     config.DB,
		Dialer:       net.Dialer{Timeout: connectTimeout},
		DisableCache: true,
	}
	if config.TLS.Enabled {
		tlsConfig, err := config.TLS.ToGoTLSConfig("redis_stream_store")
		if err != nil {
			return nil, err
		}
		opts.TLSConfig = tlsConfig
	}
	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("error creating redis client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error ping redis: %w", err)
	}
	return &Store{client: client, config: config}, nil
}

func (s *Store) Name() string { return "redis_stream" }

// StreamKey of channel.
func (s *Store) StreamKey(channel string) string {
	return s.config.StreamPrefix + channel
}

// Persist implements store.Backend.
func (s *Store) Persist(ctx context.Context, m *hub.Message) error {
	cmd := s.client.B().Arbitrary("XADD").Keys(s.StreamKey(m.Channel)).Args(xaddArgs(s.config.MaxLength, m)...).Build()
	return s.client.Do(ctx, cmd).Error()
}

func xaddArgs(maxLength int64, m *hub.Message) []string {
	args := make([]string, 0, 16)
	if maxLength > 0 {
		args = append(args, "MAXLEN", "~", strconv.FormatInt(maxLength, 10))
	}
	args = append(args, "*",
		"channel", m.Channel,
		"seq", strconv.FormatUint(m.Seq, 10),
		"data", string(m.Data),
		"publisher", m.Publisher,
		"time", strconv.FormatInt(m.Time.UnixMilli(), 10),
	)
	if m.IdempotencyKey != "" {
		args = append(args, "idempotency_key", m.IdempotencyKey)
	}
	return args
}

// Ping checks Redis is reachable, used by health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *Store) Close() {
	s.client.Close()
}
