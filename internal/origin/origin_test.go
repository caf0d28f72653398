package origin

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatternChecker(t *testing.T) {
	testCases := []struct {
		name     string
		patterns []string
		host     string
		origin   string
		allowed  bool
	}{
		{"no origin", []string{"https://app.windi.chat"}, "hub.windi.chat", "", true},
		{"exact", []string{"https://app.windi.chat"}, "hub.windi.chat", "https://app.windi.chat", true},
		{"case insensitive", []string{"https://App.windi.chat"}, "hub.windi.chat", "HTTPS://app.WINDI.chat", true},
		{"wildcard", []string{"https://*.windi.chat"}, "hub.windi.chat", "https://web.windi.chat", true},
		{"not matched", []string{"https://*.windi.chat"}, "hub.windi.chat", "https://evil.com", false},
		{"same host", nil, "hub.windi.chat", "https://hub.windi.chat", true},
		{"other host", nil, "hub.windi.chat", "https://app.windi.chat", false},
		{"any", []string{"*"}, "hub.windi.chat", "http://localhost:3000", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewPatternChecker(tc.patterns)
			require.NoError(t, err)
			r := httptest.NewRequest("GET", "http://"+tc.host+"/connection/websocket", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			require.Equal(t, tc.allowed, c.Check(r) == nil)
			require.Equal(t, tc.allowed, c.CheckOrigin(r))
		})
	}
}

func TestMalformedPattern(t *testing.T) {
	_, err := NewPatternChecker([]string{"https://[app"})
	require.Error(t, err)
}
