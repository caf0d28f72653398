package hub

import (
	"context"
	"time"

	"github.com/windi-messenger/chathub/internal/metrics"
)

// Heartbeat refreshes client liveness in all its channels.
func (h *Hub) Heartbeat(c *Client) error {
	c.heartbeatMu.Lock()
	if c.Closed() {
		c.heartbeatMu.Unlock()
		return ErrorConnectionClosed
	}
	now := h.now()
	c.lastHeartbeat.Store(now.UnixNano())
	c.heartbeatMu.Unlock()
	for _, ch := range c.Channels() {
		state, ok := h.channels.get(ch)
		if !ok {
			continue
		}
		state.mu.Lock()
		if e, ok := state.presence[c.id]; ok && e.LastHeartbeat.Before(now) {
			e.LastHeartbeat = now
		}
		state.mu.Unlock()
	}
	return nil
}

// Run runs presence sweep until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// Sweep disconnects clients which did not send heartbeat within timeout and
// evicts expired ephemeral channels. Channels are visited one at a time.
// Returns number of expired clients.
func (h *Hub) Sweep() int {
	now := h.now()
	deadline := now.Add(-h.config.HeartbeatTimeout)

	stale := make(map[string]struct{})
	for _, shard := range h.channels.shards {
		for _, state := range shard.snapshot() {
			state.mu.RLock()
			for id, e := range state.presence {
				if e.LastHeartbeat.Before(deadline) {
					stale[id] = struct{}{}
				}
			}
			evict := state.evictable(now, h.config.HistoryTTL)
			state.mu.RUnlock()
			if evict {
				h.channels.evict(state, now, h.config.HistoryTTL)
			}
		}
	}
	// Clients without subscriptions have no presence entries.
	for _, shard := range h.conns.shards {
		for _, c := range shard.snapshot() {
			if c.LastHeartbeat().Before(deadline) {
				stale[c.id] = struct{}{}
			}
		}
	}

	if n := h.channels.pruneKeys(now, h.config.KeyCacheTTL); n > 0 {
		h.logger.Debug().Int("num_channels", n).Msg("released idempotency keys of evicted channels")
	}

	var expired int
	for id := range stale {
		c, ok := h.conns.get(id)
		if !ok {
			continue
		}
		if h.expire(c, deadline) {
			expired++
		}
	}
	return expired
}

// expire disconnects client unless heartbeat arrived after deadline. A
// heartbeat either lands before the check and wins, or sees client closing
// and fails.
func (h *Hub) expire(c *Client, deadline time.Time) bool {
	c.heartbeatMu.Lock()
	if !c.LastHeartbeat().Before(deadline) {
		c.heartbeatMu.Unlock()
		return false
	}
	if !c.closing.CompareAndSwap(false, true) {
		c.heartbeatMu.Unlock()
		return false
	}
	c.heartbeatMu.Unlock()
	metrics.HubPresenceExpired.Inc()
	h.logger.Info().Str("user", c.user).Str("client", c.id).Time("last_heartbeat", c.LastHeartbeat()).Msg("client heartbeat timeout")
	h.disconnect(c, DisconnectExpired)
	return true
}
