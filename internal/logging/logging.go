// Package logging builds the slog loggers used by the client and relay.
//
// The terminal client owns stdout and stderr while it runs, so its records
// go to a file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPath is where the client logs when no path is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "tuimessenger.log")
}

// ParseLevel maps debug/info/warn/error to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Open returns a logger appending text records to path and a func that
// closes the file. path "-" logs to stderr; an empty path discards.
func Open(path string, level slog.Level) (*slog.Logger, func() error, error) {
	switch path {
	case "":
		return slog.New(slog.DiscardHandler), func() error { return nil }, nil
	case "-":
		return New(os.Stderr, level), func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	l := New(f, level)
	l.Info("logger initialized", "path", path)
	return l, f.Close, nil
}

func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Component tags every record from the returned logger with name.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With(slog.String("component", name))
}
