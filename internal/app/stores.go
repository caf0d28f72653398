package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/windi-messenger/chathub/internal/auth"
	"github.com/windi-messenger/chathub/internal/config"
	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/health"
	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/store"
	"github.com/windi-messenger/chathub/internal/store/kafka"
	"github.com/windi-messenger/chathub/internal/store/memory"
	"github.com/windi-messenger/chathub/internal/store/postgres"
	"github.com/windi-messenger/chathub/internal/store/redisstream"

	"github.com/rs/zerolog/log"
)

// storage holds message stores and membership source built from
// configuration.
type storage struct {
	backends   store.Multi
	membership auth.MembershipChecker
	checks     map[string]health.Check
	closers    []func()
}

// hubStore returns nil when no store configured so hub keeps history in
// memory only.
func (s *storage) hubStore() hub.Store {
	if len(s.backends) == 0 {
		return nil
	}
	return s.backends
}

// Close releases connections of stores in reverse order of creation.
func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	s := &storage{checks: map[string]health.Check{}}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	var pg *postgres.Store
	usePostgres := slices.Contains(cfg.Store.Types, configtypes.StoreTypePostgresql) ||
		cfg.Membership.Type == configtypes.MembershipTypePostgresql
	if usePostgres {
		var err error
		pg, err = postgres.New(ctx, cfg.Store.Postgresql)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		s.checks[pg.Name()] = pg.Ping
		if cfg.Store.Postgresql.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
	}

	for _, typ := range cfg.Store.Types {
		switch typ {
		case configtypes.StoreTypeMemory:
			s.backends = append(s.backends, memory.New())
		case configtypes.StoreTypePostgresql:
			s.backends = append(s.backends, pg)
		case configtypes.StoreTypeRedisStream:
			rs, err := redisstream.New(ctx, cfg.Store.RedisStream)
			if err != nil {
				return nil, err
			}
			s.closers = append(s.closers, rs.Close)
			s.checks[rs.Name()] = rs.Ping
			s.backends = append(s.backends, rs)
		case configtypes.StoreTypeKafka:
			k, err := kafka.New(ctx, cfg.Store.Kafka)
			if err != nil {
				return nil, err
			}
			s.closers = append(s.closers, k.Close)
			s.backends = append(s.backends, k)
		default:
			return nil, fmt.Errorf("unknown store type: %s", typ)
		}
	}

	switch cfg.Membership.Type {
	case configtypes.MembershipTypePostgresql:
		s.membership = pg
	case configtypes.MembershipTypeStatic, "":
		m, err := memory.ParseMembership(cfg.Membership.Static)
		if err != nil {
			return nil, fmt.Errorf("error parsing static membership: %w", err)
		}
		s.membership = m
	default:
		return nil, fmt.Errorf("unknown membership type: %s", cfg.Membership.Type)
	}

	if len(s.backends) > 0 {
		log.Info().Strs("stores", s.backends.Names()).Msg("message stores initialized")
	}
	ok = true
	return s, nil
}
