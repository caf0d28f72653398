// Package wsserver serves bidirectional WebSocket client connections of hub
// with a JSON command protocol.
package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/windi-messenger/chathub/internal/configtypes"
	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/metrics"
)

// Defaults.
const (
	DefaultWebsocketPingInterval     = 25 * time.Second
	DefaultWebsocketWriteTimeout     = 1 * time.Second
	DefaultWebsocketMessageSizeLimit = 65536 // 64KB
)

type Config = configtypes.WebSocket

// Handler handles WebSocket client connections.
type Handler struct {
	hub     *hub.Hub
	upgrade *websocket.Upgrader
	config  Config
}

// NewHandler creates new Handler. Same host origin check used when
// checkOrigin is nil.
func NewHandler(h *hub.Hub, c Config, checkOrigin func(r *http.Request) bool) *Handler {
	upgrade := &websocket.Upgrader{
		ReadBufferSize:  c.ReadBufferSize,
		WriteBufferSize: c.WriteBufferSize,
		CheckOrigin:     checkOrigin,
	}
	return &Handler{
		hub:     h,
		config:  c,
		upgrade: upgrade,
	}
}

func (s *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrade.Upgrade(rw, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade error")
		return
	}

	pingInterval := s.config.PingInterval.ToDuration()
	if pingInterval == 0 {
		pingInterval = DefaultWebsocketPingInterval
	}
	writeTimeout := s.config.WriteTimeout.ToDuration()
	if writeTimeout == 0 {
		writeTimeout = DefaultWebsocketWriteTimeout
	}
	messageSizeLimit := s.config.MessageSizeLimit
	if messageSizeLimit == 0 {
		messageSizeLimit = DefaultWebsocketMessageSizeLimit
	}
	if messageSizeLimit > 0 {
		conn.SetReadLimit(int64(messageSizeLimit))
	}

	// Separate goroutine for better GC of caller's data.
	go func() {
		transport := newWebsocketTransport(conn, websocketTransportOptions{
			pingInterval: pingInterval,
			writeTimeout: writeTimeout,
		})
		s.serve(r.URL.Query().Get("token"), conn, transport, pingInterval)
	}()
}

func (s *Handler) serve(token string, conn *websocket.Conn, transport *websocketTransport, pingInterval time.Duration) {
	pongWait := pingInterval * 10 / 9
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	var connectID uint32
	if token == "" {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = transport.Close(nil)
			return
		}
		var cmd Command
		var req ConnectRequest
		if json.Unmarshal(data, &cmd) != nil || cmd.Method != MethodConnect || json.Unmarshal(cmd.Params, &req) != nil {
			_ = transport.Close(hub.DisconnectBadRequest)
			return
		}
		metrics.TransportMessagesReceived.WithLabelValues(transportName, MethodConnect).Inc()
		connectID = cmd.ID
		token = req.Token
	}

	c, err := s.hub.Connect(context.Background(), token, transport)
	if err != nil {
		_ = transport.Close(connectDisconnect(err))
		return
	}
	defer s.hub.Disconnect(c, hub.DisconnectNormal)

	started := time.Now()
	log.Debug().Str("client", c.ID()).Str("user", c.UserID()).Msg("client connection established")
	defer func() {
		log.Debug().Str("client", c.ID()).Dur("duration", time.Since(started)).Msg("client connection completed")
	}()

	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		_ = s.hub.Heartbeat(c)
		return nil
	})

	err = transport.writeReply(&Reply{ID: connectID, Result: &ConnectResult{
		Client: c.ID(),
		User:   c.UserID(),
		Ping:   uint32(pingInterval.Seconds()),
	}})
	if err != nil {
		return
	}

	var limiter *rate.Limiter
	if s.config.CommandRateLimit > 0 {
		burst := s.config.CommandRateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.config.CommandRateLimit), burst)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if s.hub.Heartbeat(c) != nil {
			break
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Debug().Err(err).Str("client", c.ID()).Msg("malformed command")
			s.hub.Disconnect(c, hub.DisconnectBadRequest)
			break
		}
		metrics.TransportMessagesReceived.WithLabelValues(transportName, cmd.Method).Inc()
		var rep *Reply
		if limiter != nil && !limiter.Allow() {
			rep = &Reply{ID: cmd.ID, Error: hub.ErrorLimitExceeded}
		} else {
			rep = s.handleCommand(c, &cmd)
		}
		if err := transport.writeReply(rep); err != nil {
			break
		}
	}
}

func connectDisconnect(err error) *hub.Disconnect {
	switch {
	case errors.Is(err, hub.ErrorInvalidToken), errors.Is(err, hub.ErrorPermissionDenied):
		return hub.DisconnectInvalidToken
	case errors.Is(err, hub.ErrorNotAvailable):
		return hub.DisconnectShutdown
	}
	return hub.DisconnectServerError
}

// replyError converts error into client error. Only hub errors are exposed.
func replyError(err error) *hub.Error {
	var hubErr *hub.Error
	if errors.As(err, &hubErr) {
		return hubErr
	}
	return hub.ErrorInternal
}

func decodeParams(cmd *Command, v any) error {
	if len(cmd.Params) == 0 {
		return hub.ErrorBadRequest
	}
	if err := json.Unmarshal(cmd.Params, v); err != nil {
		return hub.ErrorBadRequest
	}
	return nil
}

func (s *Handler) handleCommand(c *hub.Client, cmd *Command) *Reply {
	result, err := s.dispatch(c, cmd)
	if err != nil {
		return &Reply{ID: cmd.ID, Error: replyError(err)}
	}
	return &Reply{ID: cmd.ID, Result: result}
}

func (s *Handler) dispatch(c *hub.Client, cmd *Command) (any, error) {
	ctx := context.Background()
	switch cmd.Method {
	case MethodPing:
		return emptyResult{}, nil
	case MethodSubscribe:
		var req SubscribeRequest
		if err := decodeParams(cmd, &req); err != nil {
			return nil, err
		}
		res, err := s.hub.Subscribe(ctx, c, req.Channel, hub.SubscribeOptions{Token: req.Token, History: req.History})
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{Seq: res.Seq, Publications: res.History}, nil
	case MethodUnsubscribe:
		var req UnsubscribeRequest
		if err := decodeParams(cmd, &req); err != nil {
			return nil, err
		}
		if err := s.hub.Unsubscribe(ctx, c, req.Channel); err != nil {
			return nil, err
		}
		return emptyResult{}, nil
	case MethodPublish:
		var req PublishRequest
		if err := decodeParams(cmd, &req); err != nil {
			return nil, err
		}
		m, err := s.hub.Publish(ctx, c, req.Channel, req.Data, hub.PublishOptions{IdempotencyKey: req.IdempotencyKey})
		if err != nil {
			return nil, err
		}
		return &PublishResult{Seq: m.Seq}, nil
	case MethodHistory:
		var req HistoryRequest
		if err := decodeParams(cmd, &req); err != nil {
			return nil, err
		}
		if !subscribed(c, req.Channel) {
			return nil, hub.ErrorPermissionDenied
		}
		messages, err := s.hub.History(req.Channel, req.Limit, req.Before)
		if err != nil {
			return nil, err
		}
		return &HistoryResult{Publications: messages}, nil
	case MethodPresence:
		var req PresenceRequest
		if err := decodeParams(cmd, &req); err != nil {
			return nil, err
		}
		if !subscribed(c, req.Channel) {
			return nil, hub.ErrorPermissionDenied
		}
		entries, err := s.hub.Presence(req.Channel)
		if err != nil {
			return nil, err
		}
		return &PresenceResult{Presence: entries}, nil
	case MethodPresenceStats:
		var req PresenceRequest
		if err := decodeParams(cmd, &req); err != nil {
			return nil, err
		}
		if !subscribed(c, req.Channel) {
			return nil, hub.ErrorPermissionDenied
		}
		stats, err := s.hub.PresenceStats(req.Channel)
		if err != nil {
			return nil, err
		}
		return &stats, nil
	}
	return nil, hub.ErrorBadRequest
}

// Clients read history and presence only of channels they passed
// authorization for.
func subscribed(c *hub.Client, ch string) bool {
	return slices.Contains(c.Channels(), ch)
}
