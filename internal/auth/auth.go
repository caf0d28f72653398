// Package auth decides whether an identity may connect, subscribe or publish
// to a channel.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/windi-messenger/chathub/internal/channel"
	"github.com/windi-messenger/chathub/internal/token"
)

// ErrForbidden returned when identity is not allowed to perform an operation.
var ErrForbidden = errors.New("forbidden")

// MembershipChecker answers whether user is a member of chat.
type MembershipChecker interface {
	IsMember(ctx context.Context, user string, chatID int64) (bool, error)
}

// MembershipFunc is an adapter to use ordinary function as MembershipChecker.
type MembershipFunc func(ctx context.Context, user string, chatID int64) (bool, error)

// IsMember calls f(ctx, user, chatID).
func (f MembershipFunc) IsMember(ctx context.Context, user string, chatID int64) (bool, error) {
	return f(ctx, user, chatID)
}

// ProofVerifier verifies single-channel subscription proofs.
type ProofVerifier interface {
	VerifySubscriptionProof(proof string, user string, channel string) error
}

// Subject is a verified identity performing an operation.
type Subject struct {
	User string
	// Allowed is a set of channel patterns from connection token. Nil means
	// not restricted.
	Allowed *token.Patterns
	// Privileged subjects may publish into system channels.
	Privileged bool
}

// Gate applies channel access rules.
type Gate struct {
	membership MembershipChecker
	proofs     ProofVerifier
	privileged map[string]struct{}
}

// Config of Gate.
type Config struct {
	// Membership used for chat channels. Chat subscriptions are denied when nil.
	Membership MembershipChecker
	// Proofs used to verify subscription proofs, optional.
	Proofs ProofVerifier
	// PrivilegedUsers may publish into system channels.
	PrivilegedUsers []string
}

// NewGate creates Gate.
func NewGate(c Config) *Gate {
	privileged := make(map[string]struct{}, len(c.PrivilegedUsers))
	for _, u := range c.PrivilegedUsers {
		privileged[u] = struct{}{}
	}
	return &Gate{
		membership: c.Membership,
		proofs:     c.Proofs,
		privileged: privileged,
	}
}

// IsPrivileged reports whether user is configured as privileged.
func (g *Gate) IsPrivileged(user string) bool {
	_, ok := g.privileged[user]
	return ok
}

// AuthorizeConnect allows any verified identity, connections are not channel
// scoped.
func (g *Gate) AuthorizeConnect(s Subject) error {
	if s.User == "" {
		return ErrForbidden
	}
	return nil
}

// AuthorizeSubscribe checks subscribe permission. Empty proof means no proof
// provided. Errors other than ErrForbidden are transient membership failures.
func (g *Gate) AuthorizeSubscribe(ctx context.Context, s Subject, ch string, proof string) error {
	c, err := g.check(s, ch)
	if err != nil {
		return err
	}
	switch c.Namespace {
	case channel.NamespaceChat:
		if proof != "" && g.proofs != nil && g.proofs.VerifySubscriptionProof(proof, s.User, ch) == nil {
			return nil
		}
		return g.checkMember(ctx, s.User, c.NumericID())
	case channel.NamespaceUser:
		return checkOwner(s.User, c.NumericID())
	case channel.NamespaceSystem:
		return nil
	}
	return ErrForbidden
}

// AuthorizePublish mirrors subscribe rules, except system channels accept
// publications only from privileged subjects.
func (g *Gate) AuthorizePublish(ctx context.Context, s Subject, ch string) error {
	c, err := g.check(s, ch)
	if err != nil {
		return err
	}
	switch c.Namespace {
	case channel.NamespaceChat:
		return g.checkMember(ctx, s.User, c.NumericID())
	case channel.NamespaceUser:
		return checkOwner(s.User, c.NumericID())
	case channel.NamespaceSystem:
		if s.Privileged || g.IsPrivileged(s.User) {
			return nil
		}
		return ErrForbidden
	}
	return ErrForbidden
}

func (g *Gate) check(s Subject, ch string) (channel.Channel, error) {
	if s.User == "" {
		return channel.Channel{}, ErrForbidden
	}
	c, err := channel.Parse(ch)
	if err != nil {
		return channel.Channel{}, ErrForbidden
	}
	if !s.Allowed.Match(ch) {
		return channel.Channel{}, ErrForbidden
	}
	return c, nil
}

func (g *Gate) checkMember(ctx context.Context, user string, chatID int64) error {
	if g.membership == nil {
		return ErrForbidden
	}
	ok, err := g.membership.IsMember(ctx, user, chatID)
	if err != nil {
		return fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func checkOwner(user string, id int64) error {
	if user != strconv.FormatInt(id, 10) {
		return ErrForbidden
	}
	return nil
}
