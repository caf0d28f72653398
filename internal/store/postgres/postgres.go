// Package postgres persists messages into PostgreSQL and resolves chat
// membership from chat_users table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/hub"
)

type Config = configtypes.PostgresStore

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store is a PostgreSQL message log.
type Store struct {
	pool   pool
	config Config

	insertSQL string
	memberSQL string
}

// New connects to PostgreSQL and pings it.
func New(ctx context.Context, config Config) (*Store, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	conf, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("error parsing postgresql DSN: %w", err)
	}
	if config.MaxConns > 0 {
		conf.MaxConns = config.MaxConns
	}
	if config.TLS.Enabled {
		tlsConfig, err := config.TLS.ToGoTLSConfig("postgresql_store")
		if err != nil {
			return nil, fmt.Errorf("error creating postgresql TLS config: %w", err)
		}
		conf.ConnConfig.TLSConfig = tlsConfig
	}
	p, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("error creating postgresql pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("error ping postgresql: %w", err)
	}
	return newStore(p, config), nil
}

func validate(config Config) error {
	if config.DSN == "" {
		return errors.New("dsn is required")
	}
	if !tableNameRe.MatchString(config.MessagesTable) {
		return fmt.Errorf("invalid messages_table %q", config.MessagesTable)
	}
	if !tableNameRe.MatchString(config.MembersTable) {
		return fmt.Errorf("invalid members_table %q", config.MembersTable)
	}
	return nil
}

func newStore(p pool, config Config) *Store {
	return &Store{
		pool:   p,
		config: config,
		insertSQL: `INSERT INTO ` + config.MessagesTable +
			` (channel, seq, data, publisher, idempotency_key, created_at) VALUES ($1, $2, $3, $4, $5, $6)` +
			` ON CONFLICT (channel, seq) DO NOTHING`,
		memberSQL: `SELECT EXISTS (SELECT 1 FROM ` + config.MembersTable + ` WHERE chat_id = $1 AND user_id = $2)`,
	}
}

func (s *Store) Name() string { return "postgresql" }

// EnsureSchema creates messages table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.config.MessagesTable+` (
	channel TEXT NOT NULL,
	seq BIGINT NOT NULL,
	data JSONB NOT NULL,
	publisher TEXT NOT NULL DEFAULT '',
	idempotency_key TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (channel, seq)
)`)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", s.config.MessagesTable, err)
	}
	return nil
}

// Persist implements store.Backend. Retried publication of same sequence
// number is a no-op.
func (s *Store) Persist(ctx context.Context, m *hub.Message) error {
	var key *string
	if m.IdempotencyKey != "" {
		key = &m.IdempotencyKey
	}
	_, err := s.pool.Exec(ctx, s.insertSQL, m.Channel, int64(m.Seq), []byte(m.Data), m.Publisher, key, m.Time)
	return err
}

// IsMember implements auth.MembershipChecker.
func (s *Store) IsMember(ctx context.Context, user string, chatID int64) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, s.memberSQL, chatID, user).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Ping checks database is reachable, used by health check.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return err
}

func (s *Store) Close() {
	s.pool.Close()
}
