package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_parseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	} {
		l, err := parseLevel(tc.in)
		require.NoError(t, err, "level %q", tc.in)
		require.Equal(t, tc.want, l)
	}

	_, err := parseLevel("verbose")
	require.ErrorContains(t, err, "parsing log level")
}

func TestNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		l, err := New(nil)
		require.NoError(t, err)
		require.NotNil(t, l)
		require.False(t, l.Enabled(context.Background(), slog.LevelDebug))
		require.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	})

	t.Run("unknown format", func(t *testing.T) {
		l, err := New(&LogConfiguration{Format: "xml", OutputPath: "discard"})
		require.EqualError(t, err, `unknown log format "xml"`)
		require.Nil(t, l)
	})

	t.Run("invalid level", func(t *testing.T) {
		l, err := New(&LogConfiguration{Level: "foo", OutputPath: "discard"})
		require.Error(t, err)
		require.Nil(t, l)
	})

	t.Run("log file", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "out.log")
		l, err := New(&LogConfiguration{OutputPath: fn, Format: "json", TimeFormat: "none"})
		require.NoError(t, err)
		l.Info("hello", Version(3))

		b, err := os.ReadFile(fn)
		require.NoError(t, err)
		m := map[string]any{}
		require.NoError(t, json.Unmarshal(b, &m))
		require.Equal(t, "hello", m["msg"])
		require.EqualValues(t, 3, m[VersionKey])
		require.NotContains(t, m, slog.TimeKey)
	})

	t.Run("log file can't be opened", func(t *testing.T) {
		l, err := New(&LogConfiguration{OutputPath: filepath.Join(t.TempDir(), "no", "such", "dir", "out.log")})
		require.ErrorContains(t, err, "opening log file")
		require.Nil(t, l)
	})
}

func TestNewWithWriter(t *testing.T) {
	_, err := NewWithWriter(LogConfiguration{}, nil)
	require.EqualError(t, err, "writer is nil")

	t.Run("ecs", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := NewWithWriter(LogConfiguration{Format: "ecs", Level: "debug"}, buf)
		require.NoError(t, err)
		l.Debug("resize failed", Error(errors.New("out of memory")))

		m := map[string]any{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
		require.Equal(t, "resize failed", m["message"])
		require.Equal(t, map[string]any{"message": "out of memory"}, m["error"])
	})

	t.Run("console", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := NewWithWriter(LogConfiguration{Format: "console"}, buf)
		require.NoError(t, err)
		l.Info("frame rendered", Version(7))
		require.Equal(t, "level=INFO msg=\"frame rendered\"\n", buf.String())
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := NewWithWriter(LogConfiguration{Format: "text", TimeFormat: "none"}, buf)
		require.NoError(t, err)
		l.Info("frame rendered", Version(7))
		require.Equal(t, "level=INFO msg=\"frame rendered\" frame_version=7\n", buf.String())
	})
}
