package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/windi-messenger/chathub/internal/channel"
)

// channelState is a shared per-channel state. Lock order is registry shard,
// then pubMu, then mu.
type channelState struct {
	name    string
	ns      channel.Namespace
	durable bool

	// pubMu serializes publications so sequence numbers are assigned,
	// persisted and enqueued in the same order.
	pubMu sync.Mutex
	seq   uint64
	keys  *keyCache

	mu          sync.RWMutex
	subscribers map[string]struct{} // client IDs, resolved through connection table.
	presence    map[string]*PresenceEntry
	history     *historyRing
	emptySince  time.Time
	// removed set under pubMu and mu when channel evicted from registry.
	removed bool
}

func newChannelState(c channel.Channel, lastSeq uint64, historySize int, keyCacheSize int, now time.Time) *channelState {
	return &channelState{
		name:        c.String(),
		ns:          c.Namespace,
		durable:     c.Durable(),
		seq:         lastSeq,
		keys:        newKeyCache(keyCacheSize),
		subscribers: make(map[string]struct{}),
		presence:    make(map[string]*PresenceEntry),
		history:     newHistoryRing(historySize),
		emptySince:  now,
	}
}

// subscriberIDs returns snapshot of subscribers, except one.
// Must be called with mu held.
func (c *channelState) subscriberIDs(except string) []string {
	ids := make([]string, 0, len(c.subscribers))
	for id := range c.subscribers {
		if id == except {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (c *channelState) presenceSnapshot() []PresenceEntry {
	c.mu.RLock()
	entries := make([]PresenceEntry, 0, len(c.presence))
	for _, e := range c.presence {
		entries = append(entries, *e)
	}
	c.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].JoinedAt.Equal(entries[j].JoinedAt) {
			return entries[i].Client < entries[j].Client
		}
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})
	return entries
}

// evictable reports whether ephemeral channel may be dropped at now.
// Must be called with mu held.
func (c *channelState) evictable(now time.Time, ttl time.Duration) bool {
	if c.durable || len(c.subscribers) > 0 {
		return false
	}
	return !now.Before(c.emptySince.Add(ttl))
}
