package hub

import "container/list"

// keyCache remembers messages by idempotency key, least recently used keys
// evicted first. Guarded by channel publish lock.
type keyCache struct {
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type keyEntry struct {
	key string
	msg *Message
}

func newKeyCache(capacity int) *keyCache {
	return &keyCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *keyCache) get(key string) (*Message, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*keyEntry).msg, true
}

func (c *keyCache) add(key string, m *Message) {
	if c.capacity <= 0 {
		return
	}
	if el, ok := c.items[key]; ok {
		el.Value.(*keyEntry).msg = m
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&keyEntry{key: key, msg: m})
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*keyEntry).key)
	}
}

func (c *keyCache) len() int {
	return c.ll.Len()
}
