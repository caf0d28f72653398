package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/windi-messenger/chathub/internal/token"
)

func members(m map[int64][]string) MembershipFunc {
	return func(_ context.Context, user string, chatID int64) (bool, error) {
		for _, u := range m[chatID] {
			if u == user {
				return true, nil
			}
		}
		return false, nil
	}
}

func TestAuthorizeConnect(t *testing.T) {
	g := NewGate(Config{})
	require.NoError(t, g.AuthorizeConnect(Subject{User: "1"}))
	require.ErrorIs(t, g.AuthorizeConnect(Subject{}), ErrForbidden)
}

func TestSubscribeChatMembership(t *testing.T) {
	g := NewGate(Config{Membership: members(map[int64][]string{5: {"1"}})})
	ctx := context.Background()
	require.NoError(t, g.AuthorizeSubscribe(ctx, Subject{User: "1"}, "chat:5", ""))
	require.ErrorIs(t, g.AuthorizeSubscribe(ctx, Subject{User: "2"}, "chat:5", ""), ErrForbidden)
	require.ErrorIs(t, g.AuthorizeSubscribe(ctx, Subject{User: "1"}, "chat:6", ""), ErrForbidden)
}

func TestSubscribeChatWithoutMembershipChecker(t *testing.T) {
	g := NewGate(Config{})
	require.ErrorIs(t, g.AuthorizeSubscribe(context.Background(), Subject{User: "1"}, "chat:5", ""), ErrForbidden)
}

func TestSubscribeMembershipFailure(t *testing.T) {
	failure := errors.New("connection refused")
	g := NewGate(Config{Membership: MembershipFunc(func(context.Context, string, int64) (bool, error) {
		return false, failure
	})})
	err := g.AuthorizeSubscribe(context.Background(), Subject{User: "1"}, "chat:5", "")
	require.ErrorIs(t, err, failure)
	require.NotErrorIs(t, err, ErrForbidden)
}

func TestSubscribeUserChannel(t *testing.T) {
	g := NewGate(Config{})
	ctx := context.Background()
	require.NoError(t, g.AuthorizeSubscribe(ctx, Subject{User: "42"}, "user:42", ""))
	require.ErrorIs(t, g.AuthorizeSubscribe(ctx, Subject{User: "43"}, "user:42", ""), ErrForbidden)
}

func TestSubscribeSystemAndUnknown(t *testing.T) {
	g := NewGate(Config{})
	ctx := context.Background()
	require.NoError(t, g.AuthorizeSubscribe(ctx, Subject{User: "1"}, "system:news", ""))
	require.ErrorIs(t, g.AuthorizeSubscribe(ctx, Subject{User: "1"}, "room:1", ""), ErrForbidden)
	require.ErrorIs(t, g.AuthorizeSubscribe(ctx, Subject{User: "1"}, "chat:abc", ""), ErrForbidden)
}

func TestSubscribeRestrictedPatterns(t *testing.T) {
	patterns, err := token.CompilePatterns([]string{"system:*"})
	require.NoError(t, err)
	g := NewGate(Config{Membership: members(map[int64][]string{5: {"1"}})})
	ctx := context.Background()
	s := Subject{User: "1", Allowed: patterns}
	require.NoError(t, g.AuthorizeSubscribe(ctx, s, "system:news", ""))
	require.ErrorIs(t, g.AuthorizeSubscribe(ctx, s, "chat:5", ""), ErrForbidden)
}

func TestSubscribeWithProof(t *testing.T) {
	tokens, err := token.New(token.Config{HMACSecretKey: "secret"})
	require.NoError(t, err)
	proof, err := tokens.IssueSubscriptionProof("1", "chat:5")
	require.NoError(t, err)

	var calls int
	g := NewGate(Config{
		Proofs: tokens,
		Membership: MembershipFunc(func(context.Context, string, int64) (bool, error) {
			calls++
			return false, nil
		}),
	})
	ctx := context.Background()
	require.NoError(t, g.AuthorizeSubscribe(ctx, Subject{User: "1"}, "chat:5", proof.Value))
	require.Equal(t, 0, calls)

	// Proof for another channel falls back to membership check.
	require.ErrorIs(t, g.AuthorizeSubscribe(ctx, Subject{User: "1"}, "chat:6", proof.Value), ErrForbidden)
	require.Equal(t, 1, calls)
}

func TestAuthorizePublish(t *testing.T) {
	g := NewGate(Config{
		Membership:      members(map[int64][]string{5: {"1"}}),
		PrivilegedUsers: []string{"backend"},
	})
	ctx := context.Background()
	require.NoError(t, g.AuthorizePublish(ctx, Subject{User: "1"}, "chat:5"))
	require.ErrorIs(t, g.AuthorizePublish(ctx, Subject{User: "2"}, "chat:5"), ErrForbidden)
	require.NoError(t, g.AuthorizePublish(ctx, Subject{User: "1"}, "user:1"))
	require.ErrorIs(t, g.AuthorizePublish(ctx, Subject{User: "1"}, "user:2"), ErrForbidden)
	require.ErrorIs(t, g.AuthorizePublish(ctx, Subject{User: "1"}, "system:news"), ErrForbidden)
	require.NoError(t, g.AuthorizePublish(ctx, Subject{User: "backend"}, "system:news"))
	require.NoError(t, g.AuthorizePublish(ctx, Subject{User: "1", Privileged: true}, "system:news"))
	require.ErrorIs(t, g.AuthorizePublish(ctx, Subject{User: "1"}, "unknown:1"), ErrForbidden)
}
