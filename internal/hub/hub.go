// Package hub implements channel based publish/subscribe with presence,
// bounded history and per-client backpressure.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/windi-messenger/chathub/internal/auth"
	"github.com/windi-messenger/chathub/internal/channel"
	"github.com/windi-messenger/chathub/internal/metrics"
	"github.com/windi-messenger/chathub/internal/token"
)

// Hub manages client connections and channels.
type Hub struct {
	config   Config
	logger   zerolog.Logger
	channels *registry
	conns    *connTable
	closing  atomic.Bool
}

// New creates Hub.
func New(c Config) (*Hub, error) {
	c = c.withDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	logger := log.Logger
	if c.Logger != nil {
		logger = *c.Logger
	}
	historySize := c.HistorySize
	if c.HistoryDisabled {
		historySize = 0
	}
	return &Hub{
		config:   c,
		logger:   logger.With().Str("component", "hub").Logger(),
		channels: newRegistry(c.NumShards, historySize, c.KeyCacheSize),
		conns:    newConnTable(c.NumShards),
	}, nil
}

func (h *Hub) now() time.Time {
	return h.config.Now()
}

// SubscribeOptions for Subscribe call.
type SubscribeOptions struct {
	// Token is an optional subscription proof for exactly this channel.
	Token string
	// History is a number of latest messages to return. Hub default used
	// when not positive.
	History int
}

// SubscribeResult of Subscribe call.
type SubscribeResult struct {
	// History is latest channel messages, newest first.
	History []Message
	// Seq is the latest sequence number in channel.
	Seq uint64
}

// PublishOptions for publish calls.
type PublishOptions struct {
	// IdempotencyKey makes retried publication return original message.
	IdempotencyKey string
	// Publisher identifies sender of server side publications.
	Publisher string
}

// BroadcastResult is a per-channel result of Broadcast.
type BroadcastResult struct {
	Channel string
	Message Message
	Err     error
}

// Connect authenticates connection token and registers client.
func (h *Hub) Connect(_ context.Context, t string, transport Transport) (*Client, error) {
	if h.closing.Load() {
		return nil, ErrorNotAvailable
	}
	claims, err := h.config.Verifier.Verify(t)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			h.logger.Debug().Str("transport", transport.Name()).Str("reason", token.Reason(err)).Msg("invalid connection token")
			return nil, ErrorInvalidToken
		}
		return nil, internalError(err)
	}
	subject := auth.Subject{User: claims.User, Allowed: claims.Channels}
	if err := h.config.Authorizer.AuthorizeConnect(subject); err != nil {
		return nil, h.authError(err, "connect", "")
	}
	c := newClient(h, subject, claims.Info, transport, h.config.ClientQueueSize, h.now())
	h.conns.add(c)
	metrics.HubClients.Inc()
	if h.closing.Load() {
		// Shutdown started after the first check and may have missed client.
		h.Disconnect(c, DisconnectShutdown)
		return nil, ErrorNotAvailable
	}
	go c.writeLoop()
	h.logger.Debug().Str("user", c.user).Str("client", c.id).Str("transport", transport.Name()).Msg("client connected")
	return c, nil
}

// parseChannel validates channel name. Unknown namespace is a permission
// error for client operations.
func parseChannel(ch string) (channel.Channel, error) {
	c, err := channel.Parse(ch)
	if err != nil {
		if errors.Is(err, channel.ErrUnknownNamespace) {
			return c, ErrorPermissionDenied
		}
		return c, ErrorBadRequest
	}
	return c, nil
}

// queryChannel validates channel name for read-only queries.
func queryChannel(ch string) error {
	if _, err := channel.Parse(ch); err != nil {
		if errors.Is(err, channel.ErrUnknownNamespace) {
			return ErrorUnknownChannel
		}
		return ErrorBadRequest
	}
	return nil
}

func (h *Hub) authError(err error, op string, ch string) error {
	if errors.Is(err, auth.ErrForbidden) {
		metrics.HubPermissionDenied.WithLabelValues(op).Inc()
		return ErrorPermissionDenied
	}
	h.logger.Error().Err(err).Str("op", op).Str("channel", ch).Msg("authorization failed")
	return internalError(err)
}

// Subscribe subscribes client to channel. Subscribing again is a no-op
// success.
func (h *Hub) Subscribe(ctx context.Context, c *Client, ch string, opts SubscribeOptions) (SubscribeResult, error) {
	if c.Closed() {
		return SubscribeResult{}, ErrorConnectionClosed
	}
	parsed, err := parseChannel(ch)
	if err != nil {
		return SubscribeResult{}, err
	}
	if err := h.config.Authorizer.AuthorizeSubscribe(ctx, c.subject, ch, opts.Token); err != nil {
		h.logger.Debug().Str("user", c.user).Str("channel", ch).Err(err).Msg("subscribe denied")
		return SubscribeResult{}, h.authError(err, "subscribe", ch)
	}
	numHistory := opts.History
	if numHistory <= 0 {
		numHistory = h.config.SubscribeHistory
	}

	for {
		state := h.channels.getOrCreate(parsed, h.now())
		state.mu.Lock()
		if state.removed {
			state.mu.Unlock()
			continue
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			state.mu.Unlock()
			return SubscribeResult{}, ErrorConnectionClosed
		}
		_, already := c.channels[ch]
		c.channels[ch] = struct{}{}
		c.mu.Unlock()

		var others []string
		if !already {
			now := h.now()
			state.subscribers[c.id] = struct{}{}
			state.presence[c.id] = &PresenceEntry{
				User:          c.user,
				Client:        c.id,
				Info:          c.info,
				JoinedAt:      now,
				LastHeartbeat: c.LastHeartbeat(),
			}
			others = state.subscriberIDs(c.id)
		}
		var history []*Message
		if numHistory > 0 {
			history = state.history.latest(numHistory, 0)
		}
		seq := state.seq
		state.mu.Unlock()

		if !already {
			metrics.HubSubscriptions.Inc()
			h.fanOut(others, newJoinPush(ch, c.clientInfo()))
			h.logger.Debug().Str("user", c.user).Str("client", c.id).Str("channel", ch).Msg("client subscribed")
		}
		return SubscribeResult{History: copyMessages(history), Seq: seq}, nil
	}
}

// Unsubscribe removes client from channel. Not subscribed client is a no-op.
func (h *Hub) Unsubscribe(_ context.Context, c *Client, ch string) error {
	if _, err := parseChannel(ch); err != nil {
		return err
	}
	c.mu.Lock()
	_, ok := c.channels[ch]
	delete(c.channels, ch)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	h.removeSubscriber(c, ch)
	return nil
}

// removeSubscriber removes client from channel subscribers and presence and
// notifies remaining subscribers.
func (h *Hub) removeSubscriber(c *Client, ch string) {
	state, ok := h.channels.get(ch)
	if !ok {
		return
	}
	now := h.now()
	state.mu.Lock()
	if _, ok := state.subscribers[c.id]; !ok {
		state.mu.Unlock()
		return
	}
	delete(state.subscribers, c.id)
	delete(state.presence, c.id)
	remaining := state.subscriberIDs("")
	if len(remaining) == 0 {
		state.emptySince = now
	}
	evict := state.evictable(now, h.config.HistoryTTL)
	state.mu.Unlock()

	metrics.HubSubscriptions.Dec()
	h.fanOut(remaining, newLeavePush(ch, c.clientInfo()))
	if evict {
		h.channels.evict(state, now, h.config.HistoryTTL)
	}
}

// Publish publishes data into channel on behalf of connected client.
func (h *Hub) Publish(ctx context.Context, c *Client, ch string, data json.RawMessage, opts PublishOptions) (Message, error) {
	if c.Closed() {
		return Message{}, ErrorConnectionClosed
	}
	opts.Publisher = c.user
	return h.authorizedPublish(ctx, c.subject, ch, data, opts)
}

// PublishAs publishes data into channel on behalf of subject.
func (h *Hub) PublishAs(ctx context.Context, s auth.Subject, ch string, data json.RawMessage, opts PublishOptions) (Message, error) {
	opts.Publisher = s.User
	return h.authorizedPublish(ctx, s, ch, data, opts)
}

func (h *Hub) authorizedPublish(ctx context.Context, s auth.Subject, ch string, data json.RawMessage, opts PublishOptions) (Message, error) {
	parsed, err := parseChannel(ch)
	if err != nil {
		return Message{}, err
	}
	if !json.Valid(data) {
		return Message{}, ErrorBadRequest
	}
	if err := h.config.Authorizer.AuthorizePublish(ctx, s, ch); err != nil {
		h.logger.Debug().Str("user", s.User).Str("channel", ch).Err(err).Msg("publish denied")
		return Message{}, h.authError(err, "publish", ch)
	}
	return h.publish(ctx, parsed, data, opts)
}

// ServerPublish publishes data into channel skipping authorization. Used by
// trusted backend API.
func (h *Hub) ServerPublish(ctx context.Context, ch string, data json.RawMessage, opts PublishOptions) (Message, error) {
	parsed, err := channel.Parse(ch)
	if err != nil {
		return Message{}, ErrorBadRequest
	}
	if !json.Valid(data) {
		return Message{}, ErrorBadRequest
	}
	return h.publish(ctx, parsed, data, opts)
}

// Broadcast publishes the same data into several channels skipping
// authorization.
func (h *Hub) Broadcast(ctx context.Context, channels []string, data json.RawMessage, opts PublishOptions) []BroadcastResult {
	results := make([]BroadcastResult, 0, len(channels))
	for _, ch := range channels {
		m, err := h.ServerPublish(ctx, ch, data, opts)
		results = append(results, BroadcastResult{Channel: ch, Message: m, Err: err})
	}
	return results
}

func (h *Hub) publish(ctx context.Context, parsed channel.Channel, data json.RawMessage, opts PublishOptions) (Message, error) {
	ns := string(parsed.Namespace)
	for {
		state := h.channels.getOrCreate(parsed, h.now())
		state.pubMu.Lock()
		if state.removed {
			state.pubMu.Unlock()
			continue
		}
		if opts.IdempotencyKey != "" {
			if m, ok := state.keys.get(opts.IdempotencyKey); ok {
				state.pubMu.Unlock()
				metrics.HubMessagesDeduplicated.WithLabelValues(ns).Inc()
				return *m, nil
			}
		}
		state.seq++
		m := &Message{
			Channel:        state.name,
			Seq:            state.seq,
			Data:           data,
			Publisher:      opts.Publisher,
			IdempotencyKey: opts.IdempotencyKey,
			Time:           h.now().UTC(),
		}
		if h.config.Store != nil {
			if err := h.config.Store.Persist(ctx, m); err != nil {
				// Sequence number stays consumed.
				state.pubMu.Unlock()
				metrics.HubPublishErrors.WithLabelValues(ns).Inc()
				h.logger.Error().Err(err).Str("channel", m.Channel).Uint64("seq", m.Seq).Msg("error persisting message")
				return Message{}, internalError(err)
			}
		}
		if opts.IdempotencyKey != "" {
			state.keys.add(opts.IdempotencyKey, m)
		}

		now := h.now()
		state.mu.Lock()
		state.history.add(m)
		subscribers := state.subscriberIDs("")
		evict := state.evictable(now, h.config.HistoryTTL)
		state.mu.Unlock()

		h.fanOut(subscribers, newPublicationPush(m))
		state.pubMu.Unlock()

		metrics.HubMessagesPublished.WithLabelValues(ns).Inc()
		if evict {
			h.channels.evict(state, now, h.config.HistoryTTL)
		}
		return *m, nil
	}
}

// fanOut enqueues push to clients. Never blocks on slow clients.
func (h *Hub) fanOut(clientIDs []string, p *Push) {
	for _, id := range clientIDs {
		if c, ok := h.conns.get(id); ok {
			c.enqueue(p)
		}
	}
}

func (h *Hub) onSlowClient(c *Client) {
	metrics.HubSlowClients.Inc()
	h.logger.Info().Str("user", c.user).Str("client", c.id).Msg("client queue overflow, disconnecting slow client")
	go h.disconnect(c, DisconnectSlow)
}

// History returns up to limit messages with sequence lower than before (0
// means latest), newest first. Unknown or evicted channel has empty history.
func (h *Hub) History(ch string, limit int, before uint64) ([]Message, error) {
	if err := queryChannel(ch); err != nil {
		return nil, err
	}
	state, ok := h.channels.get(ch)
	if !ok {
		return []Message{}, nil
	}
	state.mu.RLock()
	messages := state.history.latest(limit, before)
	state.mu.RUnlock()
	return copyMessages(messages), nil
}

// Presence returns snapshot of channel subscribers ordered by join time.
func (h *Hub) Presence(ch string) ([]PresenceEntry, error) {
	if err := queryChannel(ch); err != nil {
		return nil, err
	}
	state, ok := h.channels.get(ch)
	if !ok {
		return []PresenceEntry{}, nil
	}
	return state.presenceSnapshot(), nil
}

// PresenceStats returns number of clients and unique users in channel.
func (h *Hub) PresenceStats(ch string) (PresenceStats, error) {
	entries, err := h.Presence(ch)
	if err != nil {
		return PresenceStats{}, err
	}
	users := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		users[e.User] = struct{}{}
	}
	return PresenceStats{NumClients: len(entries), NumUsers: len(users)}, nil
}

// Disconnect closes client connection. Safe to call many times, returns after
// client removed from all channels.
func (h *Hub) Disconnect(c *Client, d *Disconnect) {
	if d == nil {
		d = DisconnectNormal
	}
	c.closing.Store(true)
	h.disconnect(c, d)
}

func (h *Hub) disconnect(c *Client, d *Disconnect) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		channels := make([]string, 0, len(c.channels))
		for ch := range c.channels {
			channels = append(channels, ch)
		}
		c.channels = nil
		c.mu.Unlock()

		close(c.done)
		h.conns.remove(c)
		for _, ch := range channels {
			h.removeSubscriber(c, ch)
		}
		if err := c.transport.Close(d); err != nil {
			h.logger.Debug().Err(err).Str("client", c.id).Msg("error closing transport")
		}
		metrics.HubClients.Dec()
		metrics.HubDisconnects.WithLabelValues(d.Reason).Inc()
		h.logger.Debug().Str("user", c.user).Str("client", c.id).Str("reason", d.Reason).Msg("client disconnected")
	})
}

// DisconnectUser disconnects all connections of user.
func (h *Hub) DisconnectUser(user string, d *Disconnect) int {
	if d == nil {
		d = DisconnectForceNoReconnect
	}
	conns := h.conns.userConnections(user)
	for _, c := range conns {
		h.Disconnect(c, d)
	}
	return len(conns)
}

// Channels returns names of all channels in registry.
func (h *Hub) Channels() []string {
	return h.channels.names()
}

// NumClients returns number of connected clients.
func (h *Hub) NumClients() int {
	return h.conns.numClients()
}

// NumUsers returns number of unique connected users.
func (h *Hub) NumUsers() int {
	return h.conns.numUsers()
}

// NumSubscribers returns number of clients subscribed to channel.
func (h *Hub) NumSubscribers(ch string) int {
	state, ok := h.channels.get(ch)
	if !ok {
		return 0
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return len(state.subscribers)
}

// hubShutdownSemaphoreSize limits graceful disconnects concurrency on
// shutdown.
const hubShutdownSemaphoreSize = 128

// Shutdown stops accepting connections and disconnects all clients.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.closing.Store(true)

	clients := h.conns.all()
	if len(clients) == 0 {
		return nil
	}
	sem := make(chan struct{}, hubShutdownSemaphoreSize)
	closeFinishedCh := make(chan struct{}, len(clients))
	finished := 0

	for _, client := range clients {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		go func(cc *Client) {
			defer func() { <-sem }()
			defer func() { closeFinishedCh <- struct{}{} }()
			h.Disconnect(cc, DisconnectShutdown)
		}(client)
	}

	for {
		select {
		case <-closeFinishedCh:
			finished++
			if finished == len(clients) {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func copyMessages(messages []*Message) []Message {
	result := make([]Message, len(messages))
	for i, m := range messages {
		result[i] = *m
	}
	return result
}
