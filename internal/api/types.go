package api

import (
	"encoding/json"
	"time"

	"github.com/windi-messenger/chathub/internal/hub"
)

// Error is an API error sent in reply.
type Error struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

var (
	ErrorInternal       = &Error{Code: hub.ErrorInternal.Code, Message: hub.ErrorInternal.Message}
	ErrorBadRequest     = &Error{Code: hub.ErrorBadRequest.Code, Message: hub.ErrorBadRequest.Message}
	ErrorNotAvailable   = &Error{Code: hub.ErrorNotAvailable.Code, Message: hub.ErrorNotAvailable.Message}
	ErrorUnauthorized   = &Error{Code: 101, Message: "unauthorized"}
	ErrorMethodNotFound = &Error{Code: 104, Message: "method not found"}
)

type PublishRequest struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
	// IdempotencyKey makes retried publication return original message.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	// Identity to publish on behalf of. Channel permissions of this identity
	// are checked when set, otherwise publication is trusted server one.
	Identity string `json:"identity,omitempty"`
}

type PublishResult struct {
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`
}

type PublishResponse struct {
	Error  *Error         `json:"error,omitempty"`
	Result *PublishResult `json:"result,omitempty"`
}

type BroadcastRequest struct {
	Channels       []string        `json:"channels"`
	Data           json.RawMessage `json:"data"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Identity       string          `json:"identity,omitempty"`
}

type BroadcastResult struct {
	Responses []*PublishResponse `json:"responses"`
}

type BroadcastResponse struct {
	Error  *Error           `json:"error,omitempty"`
	Result *BroadcastResult `json:"result,omitempty"`
}

type PresenceRequest struct {
	Channel string `json:"channel"`
}

type PresenceResult struct {
	Presence []hub.PresenceEntry `json:"presence"`
}

type PresenceResponse struct {
	Error  *Error          `json:"error,omitempty"`
	Result *PresenceResult `json:"result,omitempty"`
}

type PresenceStatsRequest struct {
	Channel string `json:"channel"`
}

type PresenceStatsResponse struct {
	Error  *Error             `json:"error,omitempty"`
	Result *hub.PresenceStats `json:"result,omitempty"`
}

type HistoryRequest struct {
	Channel string `json:"channel"`
	Limit   int    `json:"limit"`
	// Before is an exclusive upper bound of sequence, latest messages
	// returned when zero.
	Before uint64 `json:"before,omitempty"`
}

type HistoryResult struct {
	Publications []hub.Message `json:"publications"`
}

type HistoryResponse struct {
	Error  *Error         `json:"error,omitempty"`
	Result *HistoryResult `json:"result,omitempty"`
}

type DisconnectRequest struct {
	User string `json:"user"`
}

type DisconnectResult struct {
	NumDisconnected int `json:"num_disconnected"`
}

type DisconnectResponse struct {
	Error  *Error            `json:"error,omitempty"`
	Result *DisconnectResult `json:"result,omitempty"`
}

type ChannelsRequest struct {
	// Pattern filters channels with glob pattern, all channels returned
	// when empty.
	Pattern string `json:"pattern,omitempty"`
}

type ChannelInfo struct {
	NumClients int `json:"num_clients"`
}

type ChannelsResult struct {
	Channels map[string]ChannelInfo `json:"channels"`
}

type ChannelsResponse struct {
	Error  *Error          `json:"error,omitempty"`
	Result *ChannelsResult `json:"result,omitempty"`
}

type InfoRequest struct{}

type InfoResult struct {
	Version     string `json:"version"`
	Uptime      int64  `json:"uptime"`
	NumClients  int    `json:"num_clients"`
	NumUsers    int    `json:"num_users"`
	NumChannels int    `json:"num_channels"`
}

type InfoResponse struct {
	Error  *Error      `json:"error,omitempty"`
	Result *InfoResult `json:"result,omitempty"`
}

type TokenResult struct {
	Token     string    `json:"token"`
	Channel   string    `json:"channel,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SubscriptionTokenRequest struct {
	Channel string `json:"channel"`
}
