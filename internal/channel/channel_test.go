package channel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		namespace Namespace
		id        string
		err       error
	}{
		{"chat", "chat:42", NamespaceChat, "42", nil},
		{"user", "user:7", NamespaceUser, "7", nil},
		{"system", "system:announcements", NamespaceSystem, "announcements", nil},
		{"system_dots", "system:release.v2-notes_x", NamespaceSystem, "release.v2-notes_x", nil},
		{"empty", "", "", "", ErrMalformed},
		{"no_separator", "chat42", "", "", ErrMalformed},
		{"chat_non_numeric", "chat:abc", "", "", ErrMalformed},
		{"chat_leading_zero", "chat:042", "", "", ErrMalformed},
		{"chat_zero", "chat:0", "", "", ErrMalformed},
		{"chat_negative", "chat:-1", "", "", ErrMalformed},
		{"chat_overflow", "chat:99999999999999999999", "", "", ErrMalformed},
		{"user_empty", "user:", "", "", ErrMalformed},
		{"system_empty", "system:", "", "", ErrMalformed},
		{"system_bad_char", "system:a b", "", "", ErrMalformed},
		{"unknown", "room:1", "", "", ErrUnknownNamespace},
		{"too_long", "system:" + strings.Repeat("a", MaxLength), "", "", ErrMalformed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ch, err := Parse(tc.input)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.namespace, ch.Namespace)
			require.Equal(t, tc.id, ch.ID)
			require.Equal(t, tc.input, ch.String())
		})
	}
}

func TestHelpers(t *testing.T) {
	require.Equal(t, "chat:5", Chat(5))
	require.Equal(t, "user:12", User(12))
	require.Equal(t, "system:news", System("news"))

	ch, err := Parse(Chat(5))
	require.NoError(t, err)
	require.Equal(t, int64(5), ch.NumericID())
}

func TestDurable(t *testing.T) {
	require.True(t, Durable("chat:1"))
	require.False(t, Durable("user:1"))
	require.False(t, Durable("system:news"))
	require.False(t, Durable("unknown:1"))
}
