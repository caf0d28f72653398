// Package memory provides in-process message log and static chat membership.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/windi-messenger/chathub/internal/hub"
)

// Store keeps every persisted message in memory. Useful for development
// and tests, history ring of hub is limited while Store is not.
type Store struct {
	mu       sync.RWMutex
	messages map[string][]hub.Message
}

func New() *Store {
	return &Store{messages: make(map[string][]hub.Message)}
}

func (s *Store) Name() string { return "memory" }

// Persist implements store.Backend.
func (s *Store) Persist(_ context.Context, m *hub.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.Channel] = append(s.messages[m.Channel], *m)
	return nil
}

// Messages of channel in sequence order.
func (s *Store) Messages(channel string) []hub.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages[channel])
}

// Membership is a static chat membership table.
type Membership struct {
	mu    sync.RWMutex
	chats map[int64]map[string]struct{}
}

// NewMembership from chat ID to user IDs.
func NewMembership(chats map[int64][]string) *Membership {
	m := &Membership{chats: make(map[int64]map[string]struct{}, len(chats))}
	for chatID, users := range chats {
		m.Set(chatID, users...)
	}
	return m
}

// ParseMembership parses config representation: chat ID to comma separated user IDs.
func ParseMembership(raw map[string]string) (*Membership, error) {
	chats := make(map[int64][]string, len(raw))
	for key, value := range raw {
		chatID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil || chatID <= 0 {
			return nil, fmt.Errorf("malformed chat id %q", key)
		}
		for _, user := range strings.Split(value, ",") {
			if user = strings.TrimSpace(user); user != "" {
				chats[chatID] = append(chats[chatID], user)
			}
		}
	}
	return NewMembership(chats), nil
}

// Set replaces members of chat.
func (m *Membership) Set(chatID int64, users ...string) {
	set := make(map[string]struct{}, len(users))
	for _, u := range users {
		set[u] = struct{}{}
	}
	m.mu.Lock()
	m.chats[chatID] = set
	m.mu.Unlock()
}

// IsMember implements auth.MembershipChecker.
func (m *Membership) IsMember(_ context.Context, user string, chatID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.chats[chatID][user]
	return ok, nil
}
