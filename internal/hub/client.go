package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/windi-messenger/chathub/internal/auth"
)

// Transport is a connection to a client owned exclusively by the hub. Write is
// called from a single writer goroutine per client. Close must unblock pending
// Write.
type Transport interface {
	// Name of transport, used in logs and metrics.
	Name() string
	// Write sends push to client.
	Write(push *Push) error
	// Close closes connection with disconnect reason.
	Close(d *Disconnect) error
}

// Client is a connection handle returned from Hub.Connect.
type Client struct {
	hub       *Hub
	id        string
	user      string
	info      json.RawMessage
	subject   auth.Subject
	transport Transport

	queue chan *Push
	done  chan struct{}
	// closing set as soon as client is scheduled for disconnect, no more
	// pushes are enqueued after that.
	closing   atomic.Bool
	closeOnce sync.Once

	// lastHeartbeat in Unix nanoseconds.
	lastHeartbeat atomic.Int64
	// heartbeatMu orders heartbeat against expiry decision of sweep.
	heartbeatMu sync.Mutex

	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool
}

func newClient(h *Hub, subject auth.Subject, info json.RawMessage, t Transport, queueSize int, now time.Time) *Client {
	c := &Client{
		hub:       h,
		id:        uuid.NewString(),
		user:      subject.User,
		info:      info,
		subject:   subject,
		transport: t,
		queue:     make(chan *Push, queueSize),
		done:      make(chan struct{}),
		channels:  make(map[string]struct{}),
	}
	c.lastHeartbeat.Store(now.UnixNano())
	return c
}

// ID returns unique client connection id.
func (c *Client) ID() string {
	return c.id
}

// UserID returns ID of authenticated user.
func (c *Client) UserID() string {
	return c.user
}

// Info returns connection info from token.
func (c *Client) Info() json.RawMessage {
	return c.info
}

// Transport returns client transport.
func (c *Client) Transport() Transport {
	return c.transport
}

// Channels returns a slice of channels client subscribed to.
func (c *Client) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// Done is closed when client disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether client disconnected or scheduled for disconnect.
func (c *Client) Closed() bool {
	if c.closing.Load() {
		return true
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// LastHeartbeat returns time of last heartbeat.
func (c *Client) LastHeartbeat() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

func (c *Client) clientInfo() ClientInfo {
	return ClientInfo{User: c.user, Client: c.id, Info: c.info}
}

// enqueue never blocks. When queue is full client is scheduled for
// disconnect with DisconnectSlow.
func (c *Client) enqueue(p *Push) {
	if c.closing.Load() {
		return
	}
	select {
	case c.queue <- p:
	default:
		if c.closing.CompareAndSwap(false, true) {
			c.hub.onSlowClient(c)
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case p := <-c.queue:
			select {
			case <-c.done:
				return
			default:
			}
			if err := c.transport.Write(p); err != nil {
				if c.closing.CompareAndSwap(false, true) {
					go c.hub.disconnect(c, DisconnectWriteError)
				}
				return
			}
		}
	}
}
