package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/windi-messenger/chathub/internal/hub"
)

type fakeBackend struct {
	name string
	err  error
	got  []uint64
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Persist(_ context.Context, m *hub.Message) error {
	b.got = append(b.got, m.Seq)
	return b.err
}

func TestMulti(t *testing.T) {
	a := &fakeBackend{name: "a"}
	b := &fakeBackend{name: "b"}
	m := Multi{a, b}
	require.Equal(t, []string{"a", "b"}, m.Names())

	require.NoError(t, m.Persist(context.Background(), &hub.Message{Seq: 1}))
	require.Equal(t, []uint64{1}, a.got)
	require.Equal(t, []uint64{1}, b.got)

	errBoom := errors.New("boom")
	a.err = errBoom
	err := m.Persist(context.Background(), &hub.Message{Seq: 2})
	require.ErrorIs(t, err, errBoom)
	require.Contains(t, err.Error(), "a: boom")
	// Failure of one backend does not skip others.
	require.Equal(t, []uint64{1, 2}, b.got)

	require.NoError(t, Multi{}.Persist(context.Background(), &hub.Message{}))
}
