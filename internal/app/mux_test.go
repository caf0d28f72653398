package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/windi-messenger/chathub/internal/api"
	"github.com/windi-messenger/chathub/internal/auth"
	"github.com/windi-messenger/chathub/internal/config"
	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/health"
	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/store/memory"
	"github.com/windi-messenger/chathub/internal/token"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Token.HMACSecretKey = "secret"
	cfg.HttpAPI.Key = "api-key"
	cfg.Health.Enabled = true
	cfg.Prometheus.Enabled = true
	return cfg
}

func newTestHandlers(t *testing.T, checks map[string]health.Check) *handlers {
	t.Helper()
	tokens, err := token.New(token.Config{HMACSecretKey: "secret"})
	require.NoError(t, err)
	gate := auth.NewGate(auth.Config{
		Membership: memory.NewMembership(map[int64][]string{42: {"1"}}),
		Proofs:     tokens,
	})
	h, err := hub.New(hub.Config{Verifier: tokens, Authorizer: gate})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })
	return &handlers{hub: h, executor: api.NewExecutor(h, "http"), checks: checks}
}

func serve(mux http.Handler, method string, path string, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlerFlagString(t *testing.T) {
	require.Equal(t, "websocket, token", (HandlerWebsocket | HandlerToken).String())
	require.Equal(t, "api, prometheus, health", (HandlerHealth | HandlerAPI | HandlerPrometheus).String())
	require.Equal(t, "", HandlerFlag(0).String())
}

func TestHandlerFlagsByAddr(t *testing.T) {
	cfg := testConfig()
	flags := handlerFlagsByAddr(cfg)
	require.Len(t, flags, 1)
	require.Equal(t, HandlerWebsocket|HandlerAPI|HandlerPrometheus|HandlerHealth, flags[":8000"])

	cfg.HTTP.InternalPort = "9000"
	cfg.TokenAPI.Enabled = true
	flags = handlerFlagsByAddr(cfg)
	require.Equal(t, HandlerWebsocket|HandlerToken, flags[":8000"])
	require.Equal(t, HandlerAPI|HandlerPrometheus|HandlerHealth, flags[":9000"])

	cfg.HttpAPI.External = true
	flags = handlerFlagsByAddr(cfg)
	require.Equal(t, HandlerWebsocket|HandlerToken|HandlerAPI, flags[":8000"])
	require.Equal(t, HandlerPrometheus|HandlerHealth, flags[":9000"])
}

func TestMuxAPI(t *testing.T) {
	cfg := testConfig()
	mux := Mux(newTestHandlers(t, nil), cfg, HandlerAPI)
	body := `{"channel":"chat:42","data":{"text":"hi"}}`

	rec := serve(mux, http.MethodPost, "/api/publish", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(mux, http.MethodGet, "/api/publish", body, http.Header{"X-Api-Key": {"api-key"}})
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(mux, http.MethodPost, "/api/publish", body, http.Header{"X-Api-Key": {"api-key"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(1), gjson.Get(rec.Body.String(), "result.seq").Int())

	rec = serve(mux, http.MethodPost, "/api", `{"id":1,"method":"history","params":{"channel":"chat:42"}}`, http.Header{"X-Api-Key": {"api-key"}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gjson.Get(rec.Body.String(), "result.publications").Array(), 1)
}

func TestMuxAPIInsecure(t *testing.T) {
	cfg := testConfig()
	cfg.HttpAPI.Insecure = true
	cfg.HttpAPI.HandlerPrefix = "/"
	mux := Mux(newTestHandlers(t, nil), cfg, HandlerAPI)

	rec := serve(mux, http.MethodPost, "/info", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, gjson.Get(rec.Body.String(), "result.version").Exists())
}

func TestMuxHealth(t *testing.T) {
	cfg := testConfig()
	checks := map[string]health.Check{
		"postgresql": func(context.Context) error { return nil },
	}
	mux := Mux(newTestHandlers(t, checks), cfg, HandlerHealth|HandlerPrometheus)

	rec := serve(mux, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())

	rec = serve(mux, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(mux, http.MethodPost, "/api/info", "", http.Header{"X-Api-Key": {"api-key"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMuxTokenDisabled(t *testing.T) {
	cfg := testConfig()
	mux := Mux(newTestHandlers(t, nil), cfg, HandlerToken)
	rec := serve(mux, http.MethodPost, "/token/connection", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCheckOrigin(t *testing.T) {
	cfg := testConfig()
	check := getCheckOrigin(cfg)
	req := httptest.NewRequest(http.MethodGet, "http://chat.example/connection/websocket", nil)
	require.True(t, check(req))
	req.Header.Set("Origin", "http://chat.example")
	require.True(t, check(req))
	req.Header.Set("Origin", "http://evil.example")
	require.False(t, check(req))

	cfg.WebSocket.AllowedOrigins = []string{"https://*.windi.chat"}
	check = getCheckOrigin(cfg)
	req.Header.Set("Origin", "https://web.windi.chat")
	require.True(t, check(req))
}

func TestBuildStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Types = []string{configtypes.StoreTypeMemory}
	cfg.Membership.Static = configtypes.MapStringString{"42": "1,2"}

	s, err := buildStorage(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, []string{"memory"}, s.backends.Names())
	require.NotNil(t, s.hubStore())

	ok, err := s.membership.IsMember(context.Background(), "2", 42)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBuildStorageEmpty(t *testing.T) {
	s, err := buildStorage(context.Background(), testConfig())
	require.NoError(t, err)
	require.Nil(t, s.hubStore())
}

func TestBuildStorageErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Types = []string{"cassandra"}
	_, err := buildStorage(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown store type")

	cfg = testConfig()
	cfg.Membership.Type = "ldap"
	_, err = buildStorage(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown membership type")
}
