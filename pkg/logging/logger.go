// Package logging configures zerolog for the Junction binaries and gives
// library components a consistent way to derive component loggers.
//
// Levels used across the module:
//
//   - Debug: per-attempt detail (operation, method, path, status, duration),
//     cache hits and revalidations, pending-results polling.
//   - Info: process lifecycle in the binaries.
//   - Warn: degraded but working. Retries, exhausted budgets, cache errors
//     and requests held back by the rate-limit tracker.
//   - Error: binaries only. The library returns errors instead of logging them.
//
// The API key and request/response bodies are never logged.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarn     LogLevel = "warn"
	LevelError    LogLevel = "error"
	LevelDisabled LogLevel = "disabled"
)

// Component names attached as the "component" field.
const (
	ComponentClient    = "client"
	ComponentTransport = "transport"
	ComponentRetry     = "retry"
	ComponentCache     = "cache"
	ComponentRateLimit = "ratelimit"
	ComponentProxy     = "proxy"
	ComponentCLI       = "cli"
)

// Environment variables read by FromEnv.
const (
	EnvLevel  = "LOG_LEVEL"
	EnvPretty = "LOG_PRETTY"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// FromEnv builds a Config from LOG_LEVEL and LOG_PRETTY. LOG_PRETTY accepts
// any value strconv.ParseBool does; an unparsable non-empty value enables it.
func FromEnv(lookup func(string) string) Config {
	cfg := DefaultConfig()
	if v := lookup(EnvLevel); v != "" {
		cfg.Level = LogLevel(strings.ToLower(strings.TrimSpace(v)))
	}
	if v := lookup(EnvPretty); v != "" {
		pretty, err := strconv.ParseBool(v)
		cfg.Pretty = pretty || err != nil
	}
	return cfg
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to zerolog.Level. Unknown names map to
// info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a logger for component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return Component(log.Logger, component)
}

// Component derives a component logger from parent. Library code receives
// its parent from the caller, so a disabled parent stays disabled.
func Component(parent zerolog.Logger, component string) zerolog.Logger {
	return parent.With().Str("component", component).Logger()
}
