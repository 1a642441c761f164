// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// FileConfig configures an optional rotating log file.
type FileConfig struct {
	// Path of the log file. Empty disables file logging.
	Path string

	// MaxSizeMB is the size in megabytes before the file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int

	// MaxAgeDays is the number of days to keep rotated files.
	MaxAgeDays int

	// Compress rotated files with gzip.
	Compress bool
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File additionally writes JSON logs to a rotating file.
	File FileConfig
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
		File: FileConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Setup configures the global zerolog logger. The returned closer releases
// the log file, if any.
func Setup(cfg Config) (zerolog.Logger, io.Closer) {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File.Path != "" {
		rotating := newRotatingFile(cfg.File)
		output = zerolog.MultiLevelWriter(output, rotating)
		closer = rotating
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger, closer
}

func newRotatingFile(cfg FileConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level LogLevel) bool {
	switch strings.ToLower(string(level)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page fetches (cursor, limit, record count)
//   - Individual successful unbans
//   - Rate limit state updates
//
// Info: Normal operation events
//   - Run start and finish
//   - Preflight results (application, guild)
//   - Metrics server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed unbans (run continues)
//   - Retry attempts
//   - Rate limit waits and 429 responses
//   - Records dropped for lying at or before the cursor
//
// Error: Error conditions requiring attention
//   - Aborted runs (fetch, audit or cancellation)
//   - Failed requests (after retries)
//   - Configuration errors
//
// Context Fields:
//   - route: Discord route template
//   - guild_id, user_id: Discord snowflakes
//   - status_code: HTTP status code
//   - duration: Request duration
//   - error_class: Error classification (client, server, rate_limit, network)
//   - cursor: Pagination cursor ("start" or last seen user ID)
//   - batch: Batch index in multi-page runs
