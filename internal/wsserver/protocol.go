package wsserver

import (
	"encoding/json"

	"github.com/windi-messenger/chathub/internal/hub"
)

// Command methods.
const (
	MethodConnect       = "connect"
	MethodSubscribe     = "subscribe"
	MethodUnsubscribe   = "unsubscribe"
	MethodPublish       = "publish"
	MethodHistory       = "history"
	MethodPresence      = "presence"
	MethodPresenceStats = "presence_stats"
	MethodPing          = "ping"
)

// Command sent by client.
type Command struct {
	ID     uint32          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Reply to client command.
type Reply struct {
	ID     uint32     `json:"id"`
	Error  *hub.Error `json:"error,omitempty"`
	Result any        `json:"result,omitempty"`
}

type ConnectRequest struct {
	Token string `json:"token"`
}

type ConnectResult struct {
	Client string `json:"client"`
	User   string `json:"user"`
	// Ping is an interval in seconds server sends pings with.
	Ping uint32 `json:"ping,omitempty"`
}

type SubscribeRequest struct {
	Channel string `json:"channel"`
	// Token is optional subscription proof.
	Token   string `json:"token,omitempty"`
	History int    `json:"history,omitempty"`
}

type SubscribeResult struct {
	Seq          uint64        `json:"seq"`
	Publications []hub.Message `json:"publications,omitempty"`
}

type UnsubscribeRequest struct {
	Channel string `json:"channel"`
}

type PublishRequest struct {
	Channel        string          `json:"channel"`
	Data           json.RawMessage `json:"data"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type PublishResult struct {
	Seq uint64 `json:"seq"`
}

type HistoryRequest struct {
	Channel string `json:"channel"`
	Limit   int    `json:"limit"`
	Before  uint64 `json:"before,omitempty"`
}

type HistoryResult struct {
	Publications []hub.Message `json:"publications"`
}

type PresenceRequest struct {
	Channel string `json:"channel"`
}

type PresenceResult struct {
	Presence []hub.PresenceEntry `json:"presence"`
}

type emptyResult struct{}
