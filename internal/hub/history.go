package hub

// historyRing keeps last messages of channel, oldest evicted first.
// Not safe for concurrent use, guarded by channel lock.
type historyRing struct {
	buf  []*Message
	head int // position of next write.
	size int
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{buf: make([]*Message, capacity)}
}

func (r *historyRing) add(m *Message) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.head] = m
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

func (r *historyRing) len() int {
	return r.size
}

// latest returns up to limit messages with seq < before (0 means no upper
// bound), newest first. Non-positive limit returns everything retained.
func (r *historyRing) latest(limit int, before uint64) []*Message {
	if r.size == 0 {
		return nil
	}
	if limit <= 0 || limit > r.size {
		limit = r.size
	}
	result := make([]*Message, 0, limit)
	for i := 1; i <= r.size && len(result) < limit; i++ {
		idx := (r.head - i + len(r.buf)) % len(r.buf)
		m := r.buf[idx]
		if before > 0 && m.Seq >= before {
			continue
		}
		result = append(result, m)
	}
	return result
}
