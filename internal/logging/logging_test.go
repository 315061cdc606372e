package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestOpenWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client.log")
	l, closeFn, err := Open(path, slog.LevelInfo)
	require.NoError(t, err)

	Component(l, "relay").Warn("relay read failed", "err", "boom")
	l.Debug("hidden")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "logger initialized")
	require.Contains(t, string(data), "component=relay")
	require.Contains(t, string(data), "err=boom")
	require.NotContains(t, string(data), "hidden")
}

func TestOpenEmptyPathDiscards(t *testing.T) {
	l, closeFn, err := Open("", slog.LevelDebug)
	require.NoError(t, err)
	l.Info("nothing")
	require.NoError(t, closeFn())
}

func TestNewHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn)
	l.Info("quiet")
	l.Error("loud")
	require.NotContains(t, buf.String(), "quiet")
	require.Contains(t, buf.String(), "loud")
}
