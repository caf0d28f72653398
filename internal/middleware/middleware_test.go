package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justinas/alice"
	"github.com/stretchr/testify/require"
)

func testHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, r *http.Request) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func TestAPIKeyAuth(t *testing.T) {
	h := NewAPIKeyAuth("test").Middleware(testHandler())

	testCases := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		code   int
	}{
		{"missing", func(r *http.Request) {}, "/api/publish", http.StatusUnauthorized},
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", "test") }, "/api/publish", http.StatusOK},
		{"x-api-key wrong", func(r *http.Request) { r.Header.Set("X-API-Key", "other") }, "/api/publish", http.StatusUnauthorized},
		{"authorization", func(r *http.Request) { r.Header.Set("Authorization", "apikey test") }, "/api/publish", http.StatusOK},
		{"authorization case", func(r *http.Request) { r.Header.Set("Authorization", "APIKEY test") }, "/api/publish", http.StatusOK},
		{"authorization wrong", func(r *http.Request) { r.Header.Set("Authorization", "bearer test") }, "/api/publish", http.StatusUnauthorized},
		{"query", func(r *http.Request) {}, "/api/publish?api_key=test", http.StatusOK},
		{"query wrong", func(r *http.Request) {}, "/api/publish?api_key=x", http.StatusUnauthorized},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tc.target, nil)
			tc.setup(r)
			require.Equal(t, tc.code, serve(h, r))
		})
	}

	empty := NewAPIKeyAuth("").Middleware(testHandler())
	r := httptest.NewRequest(http.MethodPost, "/api/publish?api_key=", nil)
	require.Equal(t, http.StatusUnauthorized, serve(empty, r))
}

func TestConnLimit(t *testing.T) {
	clients := 0
	h := NewConnLimit(func() int { return clients }, 2, 0).Middleware(testHandler())
	r := httptest.NewRequest(http.MethodGet, "/connection/websocket", nil)
	require.Equal(t, http.StatusOK, serve(h, r))
	clients = 2
	require.Equal(t, http.StatusServiceUnavailable, serve(h, r))
}

func TestConnLimitRate(t *testing.T) {
	h := NewConnLimit(func() int { return 0 }, 0, 10).Middleware(testHandler())
	for i := 0; i < 20; i++ {
		if serve(h, httptest.NewRequest(http.MethodGet, "/", nil)) == http.StatusServiceUnavailable {
			require.GreaterOrEqual(t, i, 10)
			return
		}
	}
	require.Fail(t, "no rate limit hit upon sending 20 requests")
}

func TestMethod(t *testing.T) {
	h := Post(testHandler())
	require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodPost, "/", nil)))
	require.Equal(t, http.StatusMethodNotAllowed, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)))
	require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodOptions, "/", nil)))
}

func TestCORS(t *testing.T) {
	h := alice.New(NewCORS(func(r *http.Request) bool {
		return r.Header.Get("Origin") == "https://app.windi.chat"
	}).Middleware, Post).Then(testHandler())

	r := httptest.NewRequest(http.MethodOptions, "/token/connection", nil)
	r.Header.Set("Origin", "https://app.windi.chat")
	r.Header.Set("Access-Control-Request-Headers", "authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.windi.chat", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "authorization", rec.Header().Get("Access-Control-Allow-Headers"))

	r = httptest.NewRequest(http.MethodPost, "/token/connection", nil)
	r.Header.Set("Origin", "https://evil.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogRequestStatus(t *testing.T) {
	h := LogRequest(HTTPServerInstrumentation(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	require.Equal(t, http.StatusTeapot, serve(h, httptest.NewRequest(http.MethodGet, "/health", nil)))
}
