package wsserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/windi-messenger/chathub/internal/hub"
	"github.com/windi-messenger/chathub/internal/metrics"
)

const transportName = "websocket"

// websocketTransport is a wrapper struct over websocket connection to fit
// hub.Transport interface. Replies and pushes share one connection.
type websocketTransport struct {
	mu        sync.RWMutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	closed    bool
	closeCh   chan struct{}
	opts      websocketTransportOptions
	pingTimer *time.Timer
}

type websocketTransportOptions struct {
	pingInterval time.Duration
	writeTimeout time.Duration
}

func newWebsocketTransport(conn *websocket.Conn, opts websocketTransportOptions) *websocketTransport {
	transport := &websocketTransport{
		conn:    conn,
		closeCh: make(chan struct{}),
		opts:    opts,
	}
	if opts.pingInterval > 0 {
		transport.addPing()
	}
	return transport
}

func (t *websocketTransport) ping() {
	select {
	case <-t.closeCh:
		return
	default:
		deadline := time.Now().Add(t.opts.pingInterval / 2)
		err := t.conn.WriteControl(websocket.PingMessage, nil, deadline)
		if err != nil {
			_ = t.Close(hub.DisconnectWriteError)
			return
		}
		t.addPing()
	}
}

func (t *websocketTransport) addPing() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.pingTimer = time.AfterFunc(t.opts.pingInterval, t.ping)
	t.mu.Unlock()
}

// Name returns name of transport.
func (t *websocketTransport) Name() string {
	return transportName
}

func (t *websocketTransport) writeData(data []byte) error {
	select {
	case <-t.closeCh:
		return websocket.ErrCloseSent
	default:
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.opts.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.opts.writeTimeout))
	}
	err := t.conn.WriteMessage(websocket.TextMessage, data)
	if err != nil {
		return err
	}
	if t.opts.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Time{})
	}
	return nil
}

// Write push to connection.
func (t *websocketTransport) Write(p *hub.Push) error {
	if err := t.writeData(p.Bytes()); err != nil {
		return err
	}
	metrics.TransportMessagesSent.WithLabelValues(transportName, string(p.Type)).Inc()
	return nil
}

func (t *websocketTransport) writeReply(rep *Reply) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	if err := t.writeData(data); err != nil {
		return err
	}
	metrics.TransportMessagesSent.WithLabelValues(transportName, "reply").Inc()
	return nil
}

// Close sends close frame with disconnect code and reason and closes
// connection.
func (t *websocketTransport) Close(d *hub.Disconnect) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.pingTimer != nil {
		t.pingTimer.Stop()
	}
	t.mu.Unlock()

	if d != nil {
		reason, err := json.Marshal(d)
		if err == nil {
			msg := websocket.FormatCloseMessage(d.Code, string(reason))
			t.writeMu.Lock()
			_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			t.writeMu.Unlock()
		}
	}
	close(t.closeCh)
	return t.conn.Close()
}
