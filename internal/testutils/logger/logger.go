package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/alphabill-org/wasm-framebuffer/logger"
)

/*
New returns logger for test t on debug level.
*/
func New(t testing.TB) *slog.Logger {
	return NewLvl(t, slog.LevelDebug)
}

/*
NewLvl returns logger for test t on given level. Log output goes through
t.Log so it is only shown for failed tests (or when -v flag is used).

Environment variable FB_TEST_LOG_LEVEL overrides the level.
*/
func NewLvl(t testing.TB, level slog.Level) *slog.Logger {
	if lvl := os.Getenv("FB_TEST_LOG_LEVEL"); lvl != "" {
		if err := level.UnmarshalText([]byte(lvl)); err != nil {
			t.Fatalf("invalid FB_TEST_LOG_LEVEL value %q: %v", lvl, err)
		}
	}
	l, err := logger.NewWithWriter(logger.LogConfiguration{
		Level:      level.String(),
		Format:     "text",
		TimeFormat: "15:04:05.0000",
	}, testLogWriter{t: t})
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}
	return l
}

/*
LoggerBuilder returns "logger factory" for test t.
*/
func LoggerBuilder(t testing.TB) func(*logger.LogConfiguration) (*slog.Logger, error) {
	return func(lc *logger.LogConfiguration) (*slog.Logger, error) {
		return New(t), nil
	}
}

/*
NOP returns logger which discards all output.
*/
func NOP() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type testLogWriter struct {
	t testing.TB
}

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
