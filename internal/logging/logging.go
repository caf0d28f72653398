// Package logging configures global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/windi-messenger/chathub/internal/configtypes"
)

var logLevelMatches = map[string]zerolog.Level{
	"NONE":  zerolog.Disabled,
	"TRACE": zerolog.TraceLevel,
	"DEBUG": zerolog.DebugLevel,
	"INFO":  zerolog.InfoLevel,
	"WARN":  zerolog.WarnLevel,
	"ERROR": zerolog.ErrorLevel,
	"FATAL": zerolog.FatalLevel,
}

// ParseLevel falls back to info for unknown levels.
func ParseLevel(level string) (zerolog.Level, bool) {
	l, ok := logLevelMatches[strings.ToUpper(strings.TrimSpace(level))]
	if !ok {
		return zerolog.InfoLevel, false
	}
	return l, true
}

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35
	colorBold    = 1
)

func colorize(s any, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

func formatLevel(i any) string {
	switch i {
	case "trace":
		return colorize("TRC", colorMagenta)
	case "debug":
		return colorize("DBG", colorMagenta)
	case "info":
		return colorize("INF", colorGreen)
	case "warn":
		return colorize("WRN", colorYellow)
	case "error":
		return colorize("ERR", colorRed)
	case "fatal":
		return colorize(colorize("FTL", colorRed), colorBold)
	}
	return colorize("???", colorBold)
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:                 out,
		TimeFormat:          "2006-01-02 15:04:05",
		FormatLevel:         formatLevel,
		FormatErrFieldName:  func(i any) string { return fmt.Sprintf("%s=", i) },
		FormatErrFieldValue: func(i any) string { return fmt.Sprintf("%s", i) },
	}
}

func isTerminalAttached() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) && runtime.GOOS != "windows"
}

// Setup configures global logger. Returned func closes log file if any.
func Setup(cfg configtypes.Log) (func(), error) {
	if isTerminalAttached() {
		log.Logger = log.Output(consoleWriter(os.Stdout))
	}
	level, ok := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	if !ok && cfg.Level != "" {
		log.Warn().Str("level", cfg.Level).Msg("unknown log level, using info")
	}
	if cfg.File == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	log.Logger = log.Output(f)
	return func() { _ = f.Close() }, nil
}

// Enabled checks if a specific logging level is enabled.
func Enabled(level zerolog.Level) bool {
	return level >= zerolog.GlobalLevel()
}
