package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/windi-messenger/chathub/internal/hub"
)

type call struct {
	sql  string
	args []any
}

type fakeRow struct {
	value bool
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*bool)) = r.value
	return nil
}

type fakePool struct {
	execs   []call
	queries []call
	execErr error
	row     fakeRow
	closed  bool
}

func (p *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, call{sql, args})
	return pgconn.NewCommandTag("INSERT 0 1"), p.execErr
}

func (p *fakePool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.queries = append(p.queries, call{sql, args})
	return p.row
}

func (p *fakePool) Close() { p.closed = true }

func testConfig() Config {
	return Config{DSN: "postgres://localhost/chat", MessagesTable: "chathub_messages", MembersTable: "chat_users"}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validate(testConfig()))

	c := testConfig()
	c.DSN = ""
	require.Error(t, validate(c))

	c = testConfig()
	c.MessagesTable = "messages; DROP TABLE users"
	require.Error(t, validate(c))

	c = testConfig()
	c.MembersTable = "public.chat_users"
	require.NoError(t, validate(c))
}

func TestPersist(t *testing.T) {
	p := &fakePool{}
	s := newStore(p, testConfig())
	now := time.Now()

	err := s.Persist(context.Background(), &hub.Message{
		Channel: "chat:42", Seq: 7, Data: json.RawMessage(`{"text":"hi"}`), Publisher: "1", Time: now,
	})
	require.NoError(t, err)
	require.Len(t, p.execs, 1)
	require.Contains(t, p.execs[0].sql, "INSERT INTO chathub_messages")
	require.Contains(t, p.execs[0].sql, "ON CONFLICT (channel, seq) DO NOTHING")
	require.Equal(t, "chat:42", p.execs[0].args[0])
	require.Equal(t, int64(7), p.execs[0].args[1])
	require.Nil(t, p.execs[0].args[4])

	require.NoError(t, s.Persist(context.Background(), &hub.Message{Channel: "chat:42", Seq: 8, IdempotencyKey: "k"}))
	key := p.execs[1].args[4].(*string)
	require.Equal(t, "k", *key)

	p.execErr = errors.New("connection reset")
	require.Error(t, s.Persist(context.Background(), &hub.Message{Channel: "chat:42", Seq: 9}))
}

func TestIsMember(t *testing.T) {
	p := &fakePool{row: fakeRow{value: true}}
	s := newStore(p, testConfig())

	ok, err := s.IsMember(context.Background(), "1", 42)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, p.queries[0].sql, "FROM chat_users WHERE chat_id = $1 AND user_id = $2")
	require.Equal(t, []any{int64(42), "1"}, p.queries[0].args)

	p.row = fakeRow{err: errors.New("timeout")}
	_, err = s.IsMember(context.Background(), "1", 42)
	require.Error(t, err)
}

func TestEnsureSchemaAndClose(t *testing.T) {
	p := &fakePool{}
	s := newStore(p, testConfig())
	require.Equal(t, "postgresql", s.Name())
	require.NoError(t, s.EnsureSchema(context.Background()))
	require.Contains(t, p.execs[0].sql, "CREATE TABLE IF NOT EXISTS chathub_messages")
	s.Close()
	require.True(t, p.closed)
}
