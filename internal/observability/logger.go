package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Service    string
	Level      string
	Format     string // "json" or "console"
	TimeFormat string
}

// NewLogger creates a new zerolog logger with the specified configuration
func NewLogger(config LoggerConfig) zerolog.Logger {
	return newLogger(config, os.Stdout)
}

func newLogger(config LoggerConfig, out io.Writer) zerolog.Logger {
	level := ParseLogLevel(config.Level)
	zerolog.SetGlobalLevel(level)

	output := out
	if config.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: getTimeFormat(config.TimeFormat),
			NoColor:    false,
		}
	}

	service := config.Service
	if service == "" {
		service = "bet-simulator-service"
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", service).
		Caller().
		Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// ParseLogLevel parses a log level string, defaulting to info
func ParseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// getTimeFormat returns the time format for console logging
func getTimeFormat(format string) string {
	switch strings.ToLower(format) {
	case "kitchen":
		return time.Kitchen
	case "rfc3339nano":
		return time.RFC3339Nano
	default:
		return time.RFC3339
	}
}

// WithRequestID adds a request ID to the logger context
func WithRequestID(logger zerolog.Logger, requestID string) zerolog.Logger {
	return logger.With().Str("request_id", requestID).Logger()
}
