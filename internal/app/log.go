package app

import (
	"strings"

	"github.com/windi-messenger/chathub/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logStartWarnings(cfg config.Config, cfgMeta config.Meta) {
	if cfg.HttpAPI.Insecure {
		log.Warn().Msg("INSECURE HTTP API mode enabled, make sure you understand risks")
	}
	if !cfg.HttpAPI.Disabled && cfg.HttpAPI.External {
		log.Warn().Msg("HTTP API exposed on external port, make sure it is protected")
	}
	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		log.Info().Msg("websocket allowed_origins not set, only same host origins allowed")
	}

	for _, key := range cfgMeta.UnknownKeys {
		log.Warn().Str("key", key).Msg("unknown key in configuration file")
	}
	for _, key := range cfgMeta.UnknownEnvs {
		log.Warn().Str("var", key).Msg("unknown var in environment")
	}
}

type httpErrorLogWriter struct {
	zerolog.Logger
}

func (w *httpErrorLogWriter) Write(data []byte) (int, error) {
	w.Logger.Warn().Msg(strings.TrimSpace(string(data)))
	return len(data), nil
}
