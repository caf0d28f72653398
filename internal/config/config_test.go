package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/windi-messenger/chathub/internal/configtypes"
)

func getConfig(t *testing.T, configFile string) (Config, Meta) {
	t.Helper()
	conf, meta, err := GetConfig(nil, configFile)
	require.NoError(t, err)
	return conf, meta
}

func checkConfig(t *testing.T, conf Config) {
	t.Helper()
	require.Equal(t, "secret", conf.Token.HMACSecretKey)
	require.Equal(t, 12*time.Hour, conf.Token.ConnectionTTL.ToDuration())
	require.Equal(t, 5*time.Minute, conf.Token.SubscriptionTTL.ToDuration())
	require.Equal(t, 50, conf.Hub.HistorySize)
	require.Equal(t, 40*time.Second, conf.Hub.HeartbeatTimeout.ToDuration())
	require.Equal(t, []string{"backend"}, conf.Hub.PrivilegedUsers)
	require.Equal(t, []string{"https://*.windi.chat"}, conf.WebSocket.AllowedOrigins)
	require.Equal(t, []string{"postgresql", "kafka"}, conf.Store.Types)
	require.True(t, conf.Store.Postgresql.EnsureSchema)
	require.Equal(t, "chathub_messages", conf.Store.Postgresql.MessagesTable)
	require.True(t, conf.Store.Kafka.TLS.Enabled)
	require.Equal(t, "chathub.messages", conf.Store.Kafka.Topic)
	require.Equal(t, configtypes.MapStringString{"42": "1,2,3"}, conf.Membership.Static)
	require.NoError(t, conf.Validate())
}

func TestDefaults(t *testing.T) {
	conf := DefaultConfig()
	require.Equal(t, 8000, conf.HTTP.Port)
	require.Equal(t, "info", conf.Log.Level)
	require.Equal(t, "HS256", conf.Token.Algorithm)
	require.Equal(t, 24*time.Hour, conf.Token.ConnectionTTL.ToDuration())
	require.Equal(t, 100, conf.Hub.HistorySize)
	require.Equal(t, 1000, conf.Hub.IdempotencyCacheSize)
	require.Equal(t, 5*time.Minute, conf.Hub.IdempotencyCacheTTL.ToDuration())
	require.False(t, conf.Hub.HistoryDisabled)
	require.Equal(t, 256, conf.Hub.ClientQueueSize)
	require.Equal(t, 30*time.Second, conf.Hub.HeartbeatTimeout.ToDuration())
	require.Equal(t, 10*time.Second, conf.Hub.SweepInterval.ToDuration())
	require.Equal(t, 64, conf.Hub.NumShards)
	require.Equal(t, "/api", conf.HttpAPI.HandlerPrefix)
	require.Equal(t, "/connection/websocket", conf.WebSocket.HandlerPrefix)
	require.Equal(t, 25*time.Second, conf.WebSocket.PingInterval.ToDuration())
	require.Equal(t, []string{"127.0.0.1:6379"}, conf.Store.RedisStream.Address)
	require.Equal(t, "static", conf.Membership.Type)
	require.Equal(t, 2003, conf.Graphite.Port)

	// Secrets have no defaults.
	require.Error(t, conf.Validate())
}

func TestConfigJSON(t *testing.T) {
	conf, meta := getConfig(t, "testdata/config.json")
	checkConfig(t, conf)
	require.Equal(t, []string{"unknown_section"}, meta.UnknownKeys)
}

func TestConfigYAML(t *testing.T) {
	conf, _ := getConfig(t, "testdata/config.yaml")
	checkConfig(t, conf)
}

func TestConfigTOML(t *testing.T) {
	conf, _ := getConfig(t, "testdata/config.toml")
	checkConfig(t, conf)
}

func TestConfigFileNotFound(t *testing.T) {
	_, meta := getConfig(t, "testdata/missing.json")
	require.True(t, meta.FileNotFound)
}

func TestConfigEnvVars(t *testing.T) {
	t.Setenv("CHATHUB_TOKEN_HMAC_SECRET_KEY", "env-secret")
	t.Setenv("CHATHUB_HUB_HISTORY_SIZE", "7")
	t.Setenv("CHATHUB_HUB_SWEEP_INTERVAL", "5s")
	t.Setenv("CHATHUB_WEBSOCKET_ALLOWED_ORIGINS", "https://a.windi.chat,https://b.windi.chat")
	t.Setenv("CHATHUB_STORE_KAFKA_TLS_ENABLED", "false")
	t.Setenv("CHATHUB_PROMETHEUS_CONST_LABELS", `{"dc":"${CHATHUB_VAR_DC}"}`)
	t.Setenv("CHATHUB_VAR_DC", "ams")
	t.Setenv("CHATHUB_UNKNOWN_ENV", "1")
	t.Setenv("CHATHUB_SERVICE_HOST", "10.0.0.1")

	conf, meta := getConfig(t, "testdata/config.json")
	require.Equal(t, "env-secret", conf.Token.HMACSecretKey)
	require.Equal(t, 7, conf.Hub.HistorySize)
	require.Equal(t, 5*time.Second, conf.Hub.SweepInterval.ToDuration())
	require.Equal(t, []string{"https://a.windi.chat", "https://b.windi.chat"}, conf.WebSocket.AllowedOrigins)
	require.False(t, conf.Store.Kafka.TLS.Enabled)
	require.Equal(t, configtypes.MapStringString{"dc": "ams"}, conf.Prometheus.ConstLabels)
	require.Equal(t, []string{"CHATHUB_UNKNOWN_ENV"}, meta.UnknownEnvs)
	require.Equal(t, "token.hmac_secret_key", meta.KnownEnvVars["CHATHUB_TOKEN_HMAC_SECRET_KEY"])
}

func validConfig(t *testing.T) Config {
	t.Helper()
	conf, _ := getConfig(t, "testdata/config.json")
	require.NoError(t, conf.Validate())
	return conf
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"no secret", func(c *Config) { c.Token.HMACSecretKey = "" }},
		{"bad algorithm", func(c *Config) { c.Token.Algorithm = "RS256" }},
		{"heartbeat not above sweep", func(c *Config) { c.Hub.HeartbeatTimeout = c.Hub.SweepInterval }},
		{"negative history", func(c *Config) { c.Hub.HistorySize = -1 }},
		{"negative idempotency ttl", func(c *Config) { c.Hub.IdempotencyCacheTTL = -1 }},
		{"unknown store", func(c *Config) { c.Store.Types = []string{"mongo"} }},
		{"duplicate store", func(c *Config) { c.Store.Types = []string{"memory", "memory"} }},
		{"postgres without dsn", func(c *Config) { c.Store.Postgresql.DSN = "" }},
		{"kafka without brokers", func(c *Config) { c.Store.Kafka.Brokers = nil }},
		{"unknown membership", func(c *Config) { c.Membership.Type = "ldap" }},
		{"postgres membership without dsn", func(c *Config) {
			c.Store.Types = nil
			c.Store.Postgresql.DSN = ""
			c.Membership.Type = "postgresql"
		}},
		{"api without key", func(c *Config) { c.HttpAPI.Key = "" }},
		{"token api without user auth", func(c *Config) { c.TokenAPI.Enabled = true }},
		{"user auth without keys", func(c *Config) {
			c.TokenAPI.Enabled = true
			c.UserAuth.Enabled = true
		}},
		{"bad origin", func(c *Config) { c.WebSocket.AllowedOrigins = []string{"https://[x"} }},
		{"ping above heartbeat", func(c *Config) { c.WebSocket.PingInterval = c.Hub.HeartbeatTimeout }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig(t)
			tc.modify(&c)
			require.Error(t, c.Validate())
		})
	}

	c := validConfig(t)
	c.HttpAPI.Key = ""
	c.HttpAPI.Insecure = true
	c.TokenAPI.Enabled = true
	c.UserAuth.Enabled = true
	c.UserAuth.HMACSecretKey = "backend"
	require.NoError(t, c.Validate())
}

func TestMarshalRoundTrip(t *testing.T) {
	conf := validConfig(t)
	for _, format := range []string{"json", "yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			data, err := Marshal(conf, format)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "config."+format)
			require.NoError(t, os.WriteFile(path, data, 0644))
			f, err := FormatFromPath(path)
			require.NoError(t, err)
			require.Equal(t, format, f)

			loaded, meta := getConfig(t, path)
			require.Empty(t, meta.UnknownKeys)
			require.Equal(t, conf.Token, loaded.Token)
			require.Equal(t, conf.Hub, loaded.Hub)
			require.Equal(t, conf.Store.Types, loaded.Store.Types)
		})
	}
	_, err := Marshal(conf, "xml")
	require.Error(t, err)
	_, err = FormatFromPath("config.ini")
	require.Error(t, err)
}
