package wsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/windi-messenger/chathub/internal/auth"
	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/store/memory"
	"github.com/windi-messenger/chathub/internal/token"
)

type testServer struct {
	hub    *hub.Hub
	tokens *token.Service
	url    string
}

func newTestServer(t *testing.T, config Config) *testServer {
	t.Helper()
	tokens, err := token.New(token.Config{HMACSecretKey: "secret"})
	require.NoError(t, err)
	gate := auth.NewGate(auth.Config{
		Membership: memory.NewMembership(map[int64][]string{42: {"1", "2"}}),
		Proofs:     tokens,
	})
	h, err := hub.New(hub.Config{Verifier: tokens, Authorizer: gate})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })

	handler := NewHandler(h, config, func(r *http.Request) bool {
		return r.Header.Get("Origin") == "" || r.Header.Get("Origin") == "https://windi.chat"
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testServer{hub: h, tokens: tokens, url: "ws" + strings.TrimPrefix(server.URL, "http")}
}

func (s *testServer) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := s.tokens.IssueConnectionToken(user)
	require.NoError(t, err)
	return tok.Value
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(s.url+query, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func send(t *testing.T, conn *websocket.Conn, id uint32, method string, params any) {
	t.Helper()
	p, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Command{ID: id, Method: method, Params: p}))
}

func testConfig() Config {
	return configtypes.WebSocket{
		WriteTimeout:     configtypes.Duration(time.Second),
		PingInterval:     configtypes.Duration(5 * time.Second),
		MessageSizeLimit: 65536,
	}
}

func TestConnectWithQueryToken(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := s.dial(t, "?token="+s.token(t, "1"))

	rep := readJSON(t, conn)
	result := rep["result"].(map[string]any)
	require.Equal(t, "1", result["user"])
	require.NotEmpty(t, result["client"])
	require.Equal(t, float64(5), result["ping"])
}

func TestConnectWithCommand(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := s.dial(t, "")
	send(t, conn, 1, MethodConnect, ConnectRequest{Token: s.token(t, "2")})

	rep := readJSON(t, conn)
	require.Equal(t, float64(1), rep["id"])
	require.Equal(t, "2", rep["result"].(map[string]any)["user"])
}

func TestConnectInvalidToken(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := s.dial(t, "?token=bad")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, hub.DisconnectInvalidToken.Code, closeErr.Code)
	require.Contains(t, closeErr.Text, "invalid token")
}

func TestOriginRejected(t *testing.T) {
	s := newTestServer(t, testConfig())
	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(s.url+"?token="+s.token(t, "1"), header)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubscribePublish(t *testing.T) {
	s := newTestServer(t, testConfig())
	sub := s.dial(t, "?token="+s.token(t, "1"))
	readJSON(t, sub)
	pub := s.dial(t, "?token="+s.token(t, "2"))
	readJSON(t, pub)

	send(t, sub, 1, MethodSubscribe, SubscribeRequest{Channel: "chat:42"})
	rep := readJSON(t, sub)
	require.Equal(t, float64(1), rep["id"])
	require.Nil(t, rep["error"])

	send(t, pub, 1, MethodPublish, PublishRequest{Channel: "chat:42", Data: json.RawMessage(`{"text":"hi"}`), IdempotencyKey: "k1"})
	rep = readJSON(t, pub)
	require.Equal(t, float64(1), rep["result"].(map[string]any)["seq"])

	push := readJSON(t, sub)["push"].(map[string]any)
	require.Equal(t, "chat:42", push["channel"])
	p := push["pub"].(map[string]any)
	require.Equal(t, float64(1), p["seq"])
	require.Equal(t, "2", p["publisher"])
	require.Equal(t, map[string]any{"text": "hi"}, p["data"])

	// Retried publication returns original message without new delivery.
	send(t, pub, 2, MethodPublish, PublishRequest{Channel: "chat:42", Data: json.RawMessage(`{"text":"hi"}`), IdempotencyKey: "k1"})
	rep = readJSON(t, pub)
	require.Equal(t, float64(1), rep["result"].(map[string]any)["seq"])

	send(t, sub, 2, MethodHistory, HistoryRequest{Channel: "chat:42", Limit: 10})
	rep = readJSON(t, sub)
	require.Equal(t, float64(2), rep["id"])
	require.Len(t, rep["result"].(map[string]any)["publications"], 1)
}

func TestCommandErrors(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := s.dial(t, "?token="+s.token(t, "3"))
	readJSON(t, conn)

	send(t, conn, 1, MethodSubscribe, SubscribeRequest{Channel: "chat:42"})
	rep := readJSON(t, conn)
	require.Equal(t, float64(hub.ErrorPermissionDenied.Code), rep["error"].(map[string]any)["code"])

	send(t, conn, 2, MethodPresence, PresenceRequest{Channel: "chat:42"})
	rep = readJSON(t, conn)
	require.Equal(t, float64(hub.ErrorPermissionDenied.Code), rep["error"].(map[string]any)["code"])

	send(t, conn, 3, "rpc", nil)
	rep = readJSON(t, conn)
	require.Equal(t, float64(hub.ErrorBadRequest.Code), rep["error"].(map[string]any)["code"])

	send(t, conn, 4, MethodPing, nil)
	rep = readJSON(t, conn)
	require.Equal(t, float64(4), rep["id"])
	require.Equal(t, map[string]any{}, rep["result"])
}

func TestPresenceOverWebsocket(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := s.dial(t, "?token="+s.token(t, "1"))
	readJSON(t, conn)

	send(t, conn, 1, MethodSubscribe, SubscribeRequest{Channel: "user:1"})
	readJSON(t, conn)
	send(t, conn, 2, MethodPresence, PresenceRequest{Channel: "user:1"})
	rep := readJSON(t, conn)
	presence := rep["result"].(map[string]any)["presence"].([]any)
	require.Len(t, presence, 1)
	require.Equal(t, "1", presence[0].(map[string]any)["user"])

	send(t, conn, 3, MethodUnsubscribe, UnsubscribeRequest{Channel: "user:1"})
	readJSON(t, conn)
	require.Equal(t, 0, s.hub.NumSubscribers("user:1"))
}

func TestCommandRateLimit(t *testing.T) {
	config := testConfig()
	config.CommandRateLimit = 0.001
	config.CommandRateBurst = 1
	s := newTestServer(t, config)
	conn := s.dial(t, "?token="+s.token(t, "1"))
	readJSON(t, conn)

	send(t, conn, 1, MethodPing, nil)
	rep := readJSON(t, conn)
	require.Nil(t, rep["error"])

	send(t, conn, 2, MethodPing, nil)
	rep = readJSON(t, conn)
	require.Equal(t, float64(hub.ErrorLimitExceeded.Code), rep["error"].(map[string]any)["code"])
}

func TestDisconnectUserClosesConnection(t *testing.T) {
	s := newTestServer(t, testConfig())
	conn := s.dial(t, "?token="+s.token(t, "1"))
	readJSON(t, conn)

	require.Equal(t, 1, s.hub.DisconnectUser("1", nil))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, hub.DisconnectForceNoReconnect.Code, closeErr.Code)
}
