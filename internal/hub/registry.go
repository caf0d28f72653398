package hub

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/windi-messenger/chathub/internal/channel"
	"github.com/windi-messenger/chathub/internal/metrics"
)

func index(s string, numBuckets int) int {
	return int(xxhash.Sum64String(s) % uint64(numBuckets))
}

// registry maps channel names to channel state. Split into shards so that
// operations on different channels rarely contend.
type registry struct {
	shards       []*registryShard
	historySize  int
	keyCacheSize int
}

type registryShard struct {
	mu       sync.RWMutex
	channels map[string]*channelState
	// tombstones of evicted channels. Sequence is kept for the lifetime of
	// hub so a recreated channel never reuses sequence numbers, this costs one
	// entry per distinct ephemeral channel name ever published into.
	tombstones map[string]tombstone
}

// tombstone is what survives channel eviction. Idempotency keys are kept
// until keyTTL passes so that a retried publication into an evicted channel
// still returns the original message.
type tombstone struct {
	seq       uint64
	keys      *keyCache
	evictedAt time.Time
}

func newRegistry(numShards int, historySize int, keyCacheSize int) *registry {
	r := &registry{
		shards:       make([]*registryShard, numShards),
		historySize:  historySize,
		keyCacheSize: keyCacheSize,
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{
			channels:   make(map[string]*channelState),
			tombstones: make(map[string]tombstone),
		}
	}
	return r
}

func (r *registry) shard(ch string) *registryShard {
	return r.shards[index(ch, len(r.shards))]
}

func (r *registry) get(ch string) (*channelState, bool) {
	s := r.shard(ch)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[ch]
	return c, ok
}

func (r *registry) getOrCreate(c channel.Channel, now time.Time) *channelState {
	name := c.String()
	s := r.shard(name)
	s.mu.RLock()
	state, ok := s.channels[name]
	s.mu.RUnlock()
	if ok {
		return state
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.channels[name]; ok {
		return state
	}
	ts, ok := s.tombstones[name]
	state = newChannelState(c, ts.seq, r.historySize, r.keyCacheSize, now)
	if ok {
		if ts.keys != nil {
			state.keys = ts.keys
		}
		delete(s.tombstones, name)
	}
	s.channels[name] = state
	metrics.HubChannels.Inc()
	return state
}

// evict drops channel if it is still evictable at now.
func (r *registry) evict(state *channelState, now time.Time, ttl time.Duration) bool {
	s := r.shard(state.name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels[state.name] != state {
		return false
	}
	state.pubMu.Lock()
	defer state.pubMu.Unlock()
	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.evictable(now, ttl) {
		return false
	}
	state.removed = true
	delete(s.channels, state.name)
	if state.seq > 0 {
		ts := tombstone{seq: state.seq, evictedAt: now}
		if state.keys.len() > 0 {
			ts.keys = state.keys
		}
		s.tombstones[state.name] = ts
	}
	metrics.HubChannels.Dec()
	return true
}

// pruneKeys releases idempotency keys of channels evicted at least ttl ago.
// Returns number of released key caches.
func (r *registry) pruneKeys(now time.Time, ttl time.Duration) int {
	var n int
	for _, s := range r.shards {
		s.mu.Lock()
		for name, ts := range s.tombstones {
			if ts.keys == nil || now.Before(ts.evictedAt.Add(ttl)) {
				continue
			}
			ts.keys = nil
			s.tombstones[name] = ts
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// snapshot returns channels of one shard.
func (s *registryShard) snapshot() []*channelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make([]*channelState, 0, len(s.channels))
	for _, state := range s.channels {
		states = append(states, state)
	}
	return states
}

func (r *registry) names() []string {
	var names []string
	for _, s := range r.shards {
		s.mu.RLock()
		for name := range s.channels {
			names = append(names, name)
		}
		s.mu.RUnlock()
	}
	return names
}

// connTable holds live clients by ID and by user.
type connTable struct {
	shards []*connShard
	users  []*userShard
}

type connShard struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

type userShard struct {
	mu    sync.RWMutex
	users map[string]map[string]*Client
}

func newConnTable(numShards int) *connTable {
	t := &connTable{
		shards: make([]*connShard, numShards),
		users:  make([]*userShard, numShards),
	}
	for i := 0; i < numShards; i++ {
		t.shards[i] = &connShard{conns: make(map[string]*Client)}
		t.users[i] = &userShard{users: make(map[string]map[string]*Client)}
	}
	return t
}

func (t *connTable) add(c *Client) {
	s := t.shards[index(c.id, len(t.shards))]
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	u := t.users[index(c.user, len(t.users))]
	u.mu.Lock()
	if _, ok := u.users[c.user]; !ok {
		u.users[c.user] = make(map[string]*Client)
	}
	u.users[c.user][c.id] = c
	u.mu.Unlock()
}

func (t *connTable) remove(c *Client) {
	s := t.shards[index(c.id, len(t.shards))]
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	u := t.users[index(c.user, len(t.users))]
	u.mu.Lock()
	if conns, ok := u.users[c.user]; ok {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(u.users, c.user)
		}
	}
	u.mu.Unlock()
}

func (t *connTable) get(id string) (*Client, bool) {
	s := t.shards[index(id, len(t.shards))]
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

func (t *connTable) userConnections(user string) []*Client {
	u := t.users[index(user, len(t.users))]
	u.mu.RLock()
	defer u.mu.RUnlock()
	conns := make([]*Client, 0, len(u.users[user]))
	for _, c := range u.users[user] {
		conns = append(conns, c)
	}
	return conns
}

func (t *connTable) all() []*Client {
	var conns []*Client
	for _, s := range t.shards {
		conns = append(conns, s.snapshot()...)
	}
	return conns
}

func (s *connShard) snapshot() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conns := make([]*Client, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

func (t *connTable) numClients() int {
	var n int
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.conns)
		s.mu.RUnlock()
	}
	return n
}

func (t *connTable) numUsers() int {
	var n int
	for _, u := range t.users {
		u.mu.RLock()
		n += len(u.users)
		u.mu.RUnlock()
	}
	return n
}
