// Package channel defines channel name grammar. The grammar is a versioned
// protocol contract shared with clients:
//
//	chat:{numeric_id}
//	user:{numeric_id}
//	system:{topic}
//
// Any change here is a breaking protocol change.
package channel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version of channel name grammar.
const Version = 1

// MaxLength is the maximum allowed channel name length in bytes.
const MaxLength = 255

// Namespace is a channel name prefix before the separator.
type Namespace string

const (
	NamespaceChat   Namespace = "chat"
	NamespaceUser   Namespace = "user"
	NamespaceSystem Namespace = "system"
)

const separator = ":"

var (
	// ErrMalformed returned for channel names that do not follow the grammar.
	ErrMalformed = errors.New("malformed channel name")
	// ErrUnknownNamespace returned when channel prefix is not one of known namespaces.
	ErrUnknownNamespace = errors.New("unknown channel namespace")
)

// Channel is a parsed channel name.
type Channel struct {
	Namespace Namespace
	// ID is a part after separator: numeric id for chat and user
	// namespaces, topic for system namespace.
	ID string
}

// String returns channel name.
func (c Channel) String() string {
	return string(c.Namespace) + separator + c.ID
}

// NumericID returns ID as integer. Only meaningful for chat and user namespaces.
func (c Channel) NumericID() int64 {
	id, _ := strconv.ParseInt(c.ID, 10, 64)
	return id
}

// Durable reports whether channel history must survive the absence of subscribers.
func (c Channel) Durable() bool {
	return c.Namespace == NamespaceChat
}

// Parse parses channel name.
func Parse(name string) (Channel, error) {
	if name == "" || len(name) > MaxLength {
		return Channel{}, fmt.Errorf("%w: bad length", ErrMalformed)
	}
	ns, id, ok := strings.Cut(name, separator)
	if !ok {
		return Channel{}, fmt.Errorf("%w: no namespace in %q", ErrMalformed, name)
	}
	switch Namespace(ns) {
	case NamespaceChat, NamespaceUser:
		if !isNumericID(id) {
			return Channel{}, fmt.Errorf("%w: %s channel requires numeric id", ErrMalformed, ns)
		}
	case NamespaceSystem:
		if !isTopic(id) {
			return Channel{}, fmt.Errorf("%w: bad system topic", ErrMalformed)
		}
	default:
		return Channel{}, fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
	}
	return Channel{Namespace: Namespace(ns), ID: id}, nil
}

// Durable reports whether channel with the given name is durable. Unparseable
// names are never durable.
func Durable(name string) bool {
	ch, err := Parse(name)
	if err != nil {
		return false
	}
	return ch.Durable()
}

// Chat returns chat channel name.
func Chat(id int64) string {
	return string(NamespaceChat) + separator + strconv.FormatInt(id, 10)
}

// User returns personal user channel name.
func User(id int64) string {
	return string(NamespaceUser) + separator + strconv.FormatInt(id, 10)
}

// System returns system broadcast channel name.
func System(topic string) string {
	return string(NamespaceSystem) + separator + topic
}

// isNumericID checks for positive decimal without sign and leading zeros.
func isNumericID(s string) bool {
	if s == "" || len(s) > 19 || s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isTopic(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '-', c == '.':
		default:
			return false
		}
	}
	return true
}
