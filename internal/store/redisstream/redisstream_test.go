package redisstream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/windi-messenger/chathub/internal/hub"
)

func TestXAddArgs(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	m := &hub.Message{Channel: "chat:42", Seq: 3, Data: json.RawMessage(`{"a":1}`), Publisher: "1", Time: ts}

	require.Equal(t, []string{
		"MAXLEN", "~", "1000", "*",
		"channel", "chat:42",
		"seq", "3",
		"data", `{"a":1}`,
		"publisher", "1",
		"time", "1700000000000",
	}, xaddArgs(1000, m))

	m.IdempotencyKey = "k1"
	args := xaddArgs(0, m)
	require.Equal(t, "*", args[0])
	require.Equal(t, []string{"idempotency_key", "k1"}, args[len(args)-2:])
}

func TestStreamKey(t *testing.T) {
	s := &Store{config: Config{StreamPrefix: "chathub.stream."}}
	require.Equal(t, "chathub.stream.chat:42", s.StreamKey("chat:42"))
	require.Equal(t, "redis_stream", s.Name())
}

func TestNewRequiresAddress(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
