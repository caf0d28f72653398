package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"github.com/windi-messenger/chathub/internal/configtypes"
)

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("debug")
	require.True(t, ok)
	require.Equal(t, zerolog.DebugLevel, l)
	l, ok = ParseLevel(" NONE ")
	require.True(t, ok)
	require.Equal(t, zerolog.Disabled, l)
	l, ok = ParseLevel("verbose")
	require.False(t, ok)
	require.Equal(t, zerolog.InfoLevel, l)
}

func TestSetupFile(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	}()

	path := filepath.Join(t.TempDir(), "chathub.log")
	closeFn, err := Setup(configtypes.Log{Level: "warn", File: path})
	require.NoError(t, err)
	require.True(t, Enabled(zerolog.ErrorLevel))
	require.False(t, Enabled(zerolog.InfoLevel))

	log.Info().Msg("skipped")
	log.Warn().Msg("written")
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "written")
	require.NotContains(t, string(data), "skipped")

	_, err = Setup(configtypes.Log{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(consoleWriter(&buf))
	logger.Error().Str("channel", "chat:1").Msg("boom")
	require.Contains(t, buf.String(), "ERR")
	require.Contains(t, buf.String(), "boom")
}
