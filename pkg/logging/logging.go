// Package logging builds the structured loggers used by pipetrace.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

var ErrUnknownLevel = errors.New("unknown log level")

// Logger configuration
type Config struct {
	// Minimum level of the console log: debug, info, warn or error. Empty means warn.
	Level string
	// Optional path of a file that receives every record, at debug level, as JSON lines
	File string
	// Console output. nil means stderr.
	Console io.Writer
}

// Parses a level name (debug, info, warn, error). Matching is case insensitive.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
}

// Builds a logger from the configuration. Records are fanned out to a text handler on
// the console and, when configured, to a JSON handler on the log file. The returned
// close function releases the log file and must be called once logging is done.
func New(config Config) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, nil, err
	}

	console := config.Console
	if console == nil {
		console = os.Stderr
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}),
	}
	closeFunc := func() error { return nil }

	if config.File != "" {
		file, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}

		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closeFunc = file.Close
	}

	return slog.New(slogmulti.Fanout(handlers...)), closeFunc, nil
}

// Returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
