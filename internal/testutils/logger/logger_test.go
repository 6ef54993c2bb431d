package logger

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/alphabill-org/wasm-framebuffer/logger"
)

func Test_logger_for_tests(t *testing.T) {
	t.Skip("this test is only for visually checking the output")

	t.Run("debug", func(t *testing.T) {
		l := New(t)
		l.Error("arena is in invalid state", logger.Error(fmt.Errorf("memory shrunk")))
		l.Warn("out of memory", logger.Frame(1000, 1000, 4000))
		l.Info("frame published", logger.Version(42))
		l.Debug("buffers reallocated", logger.Arena(1024, 65536))
		t.Error("calling t.Error causes the test to fail")
	})

	t.Run("info", func(t *testing.T) {
		l := NewLvl(t, slog.LevelInfo)
		l.Info("frame published", logger.Version(1))
		t.Log("this is INFO level logger so Debug call should not show up")
		l.Debug("this shouldn't show up in the log")
		t.Fail()
	})
}

func Test_NOP(t *testing.T) {
	l := NOP()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("NOP logger should not be enabled for any level")
	}
	l.Error("discarded")
}
