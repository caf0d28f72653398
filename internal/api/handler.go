package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxRequestBodySize = 1 << 20

// Handler is responsible for processing API commands over HTTP.
type Handler struct {
	mux *http.ServeMux
	api *Executor
}

// NewHandler creates new Handler. Each method served on its own path, for
// example /publish, and also as a command sent to root path.
func NewHandler(apiExecutor *Executor) *Handler {
	m := http.NewServeMux()
	h := &Handler{
		mux: m,
		api: apiExecutor,
	}
	m.HandleFunc("/publish", handle(apiExecutor.Publish))
	m.HandleFunc("/broadcast", handle(apiExecutor.Broadcast))
	m.HandleFunc("/presence", handle(apiExecutor.Presence))
	m.HandleFunc("/presence_stats", handle(apiExecutor.PresenceStats))
	m.HandleFunc("/history", handle(apiExecutor.History))
	m.HandleFunc("/disconnect", handle(apiExecutor.Disconnect))
	m.HandleFunc("/channels", handle(apiExecutor.Channels))
	m.HandleFunc("/info", handle(apiExecutor.Info))
	m.HandleFunc("/{$}", h.handleCommand)
	return h
}

func (s *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		log.Error().Err(err).Msg("error reading API request body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

func handle[Req any, Resp any](fn func(context.Context, *Req) Resp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := readBody(w, r)
		if !ok {
			return
		}
		req := new(Req)
		if len(data) > 0 {
			if err := json.Unmarshal(data, req); err != nil {
				log.Debug().Err(err).Msg("error decoding API data")
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}
		}
		writeJSON(w, fn(r.Context(), req))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("error encoding API reply")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handleCommand serves commands in form {"id": 1, "method": "publish",
// "params": {...}}. Reply echoes command id.
func (s *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	if !gjson.ValidBytes(data) {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	cmd := gjson.ParseBytes(data)
	params := []byte(cmd.Get("params").Raw)
	if len(params) == 0 {
		params = []byte("{}")
	}

	resp, err := s.dispatch(r.Context(), cmd.Get("method").String(), params)
	if err != nil {
		log.Debug().Err(err).Msg("error decoding API command params")
		resp = map[string]any{"error": ErrorBadRequest}
	}
	reply, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("error encoding API reply")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if id := cmd.Get("id"); id.Exists() {
		reply, err = sjson.SetRawBytes(reply, "id", []byte(id.Raw))
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(reply)
}

func decodeAndRun[Req any, Resp any](ctx context.Context, params []byte, fn func(context.Context, *Req) Resp) (any, error) {
	req := new(Req)
	if err := json.Unmarshal(params, req); err != nil {
		return nil, err
	}
	return fn(ctx, req), nil
}

func (s *Handler) dispatch(ctx context.Context, method string, params []byte) (any, error) {
	switch method {
	case "publish":
		return decodeAndRun(ctx, params, s.api.Publish)
	case "broadcast":
		return decodeAndRun(ctx, params, s.api.Broadcast)
	case "presence":
		return decodeAndRun(ctx, params, s.api.Presence)
	case "presence_stats":
		return decodeAndRun(ctx, params, s.api.PresenceStats)
	case "history":
		return decodeAndRun(ctx, params, s.api.History)
	case "disconnect":
		return decodeAndRun(ctx, params, s.api.Disconnect)
	case "channels":
		return decodeAndRun(ctx, params, s.api.Channels)
	case "info":
		return decodeAndRun(ctx, params, s.api.Info)
	}
	return map[string]any{"error": ErrorMethodNotFound}, nil
}
