package hub

import (
	"encoding/json"
	"sync"
	"time"
)

// Message is a publication in channel. Immutable once appended to history.
type Message struct {
	Channel        string          `json:"channel"`
	Seq            uint64          `json:"seq"`
	Data           json.RawMessage `json:"data"`
	Publisher      string          `json:"publisher"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Time           time.Time       `json:"time"`
}

// ClientInfo identifies connection in join and leave events and presence.
type ClientInfo struct {
	User   string          `json:"user"`
	Client string          `json:"client"`
	Info   json.RawMessage `json:"info,omitempty"`
}

// PresenceEntry describes live subscriber of channel.
type PresenceEntry struct {
	User          string          `json:"user"`
	Client        string          `json:"client"`
	Info          json.RawMessage `json:"info,omitempty"`
	JoinedAt      time.Time       `json:"joined_at"`
	LastHeartbeat time.Time       `json:"last_heartbeat"`
}

// PresenceStats is a short summary of channel presence.
type PresenceStats struct {
	NumClients int `json:"num_clients"`
	NumUsers   int `json:"num_users"`
}

// PushType is a kind of asynchronous message sent to subscribers.
type PushType string

const (
	PushTypePublication PushType = "pub"
	PushTypeJoin        PushType = "join"
	PushTypeLeave       PushType = "leave"
)

// Push is delivered to subscriber queues. A single Push is shared by all
// subscribers of a fan-out and encoded at most once.
type Push struct {
	Type    PushType
	Channel string
	Pub     *Message
	Info    *ClientInfo

	once    sync.Once
	encoded []byte
}

type pushEnvelope struct {
	Push pushBody `json:"push"`
}

type pushBody struct {
	Channel string      `json:"channel"`
	Pub     *Message    `json:"pub,omitempty"`
	Join    *ClientInfo `json:"join,omitempty"`
	Leave   *ClientInfo `json:"leave,omitempty"`
}

func newPublicationPush(m *Message) *Push {
	return &Push{Type: PushTypePublication, Channel: m.Channel, Pub: m}
}

func newJoinPush(ch string, info ClientInfo) *Push {
	return &Push{Type: PushTypeJoin, Channel: ch, Info: &info}
}

func newLeavePush(ch string, info ClientInfo) *Push {
	return &Push{Type: PushTypeLeave, Channel: ch, Info: &info}
}

// Bytes returns JSON encoding of Push.
func (p *Push) Bytes() []byte {
	p.once.Do(func() {
		body := pushBody{Channel: p.Channel}
		switch p.Type {
		case PushTypePublication:
			body.Pub = p.Pub
		case PushTypeJoin:
			body.Join = p.Info
		case PushTypeLeave:
			body.Leave = p.Info
		}
		// Fields are plain data or validated raw JSON.
		p.encoded, _ = json.Marshal(pushEnvelope{Push: body})
	})
	return p.encoded
}
