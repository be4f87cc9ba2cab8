// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// serviceName tags every JSON line so aggregated logs can be filtered.
const serviceName = "expense-approvals"

// Log is the global logger instance.
var Log zerolog.Logger

func init() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	Log = consoleLogger(os.Stdout)
}

func consoleLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Caller().Logger()
}

func jsonLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger()
}

// SetLevel sets the global log level. Unknown or empty names mean info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// SetJSON switches to JSON output on stdout.
func SetJSON() {
	Log = jsonLogger(os.Stdout)
}

// SetOutput redirects the global logger to w, as JSON when json is set.
func SetOutput(w io.Writer, json bool) {
	if json {
		Log = jsonLogger(w)
		return
	}
	Log = consoleLogger(w)
}

// Configure applies the level and output format from configuration.
func Configure(level, format string) {
	if format == "json" {
		SetJSON()
	}
	SetLevel(level)
}

// WithComponent returns a child logger tagged with the given component name.
// Loggers derived before a Configure call keep the old output.
func WithComponent(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
