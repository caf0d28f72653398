package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func doPost(t *testing.T, h http.Handler, path string, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	data, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(data)
}

func TestHandlerPublish(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(NewExecutor(env.hub, "http"))

	code, body := doPost(t, h, "/publish", `{"channel":"chat:42","data":{"text":"hi"}}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(1), gjson.Get(body, "result.seq").Int())
	require.False(t, gjson.Get(body, "error").Exists())

	code, body = doPost(t, h, "/publish", `{"channel":"chat:42"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(107), gjson.Get(body, "error.code").Int())

	code, _ = doPost(t, h, "/publish", `{"channel":`)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestHandlerEmptyBody(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(NewExecutor(env.hub, "http"))

	code, body := doPost(t, h, "/info", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(0), gjson.Get(body, "result.num_clients").Int())
	require.True(t, gjson.Get(body, "result.version").Exists())

	code, body = doPost(t, h, "/channels", "")
	require.Equal(t, http.StatusOK, code)
	require.True(t, gjson.Get(body, "result.channels").IsObject())
}

func TestHandlerHistory(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(NewExecutor(env.hub, "http"))

	for i := 0; i < 2; i++ {
		code, _ := doPost(t, h, "/publish", `{"channel":"chat:42","data":{"n":1}}`)
		require.Equal(t, http.StatusOK, code)
	}
	_, body := doPost(t, h, "/history", `{"channel":"chat:42","limit":10}`)
	pubs := gjson.Get(body, "result.publications").Array()
	require.Len(t, pubs, 2)
	require.Equal(t, int64(2), pubs[0].Get("seq").Int())
	require.Equal(t, `{"n":1}`, pubs[0].Get("data").Raw)
}

func TestHandlerCommand(t *testing.T) {
	env := newTestEnv(t)
	h := NewHandler(NewExecutor(env.hub, "http"))

	code, body := doPost(t, h, "/", `{"id":7,"method":"publish","params":{"channel":"user:1","data":{}}}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(7), gjson.Get(body, "id").Int())
	require.Equal(t, int64(1), gjson.Get(body, "result.seq").Int())

	_, body = doPost(t, h, "/", `{"method":"info"}`)
	require.True(t, gjson.Get(body, "result.version").Exists())
	require.False(t, gjson.Get(body, "id").Exists())

	_, body = doPost(t, h, "/", `{"id":"x","method":"rpc"}`)
	require.Equal(t, "x", gjson.Get(body, "id").String())
	require.Equal(t, int64(104), gjson.Get(body, "error.code").Int())

	_, body = doPost(t, h, "/", `{"method":"history","params":{"channel":1}}`)
	require.Equal(t, int64(107), gjson.Get(body, "error.code").Int())

	code, _ = doPost(t, h, "/", `not json`)
	require.Equal(t, http.StatusBadRequest, code)
}
