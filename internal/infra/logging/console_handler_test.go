package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/library/internal/infra/logging"
)

func TestConsoleHandler(t *testing.T) {
	t.Parallel()

	t.Run("plain", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		slog.New(logging.NewConsoleHandler(&buf, slog.LevelInfo, false)).
			With("logger", "svc.borrowsvc").
			WithGroup("loan").
			Info("opened", "id", 7)

		assert.Contains(t, buf.String(), "[INFO] opened | logger=svc.borrowsvc loan.id=7")
		assert.Contains(t, buf.String(), "-> logging_test.TestConsoleHandler")
		assert.NotContains(t, buf.String(), "\033[")
	})

	t.Run("colored", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		slog.New(logging.NewConsoleHandler(&buf, slog.LevelInfo, true)).Error("boom")

		assert.Contains(t, buf.String(), "\033[31m[ERROR]\033[0m boom")
	})

	t.Run("derived loggers do not share attrs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		base := slog.New(logging.NewConsoleHandler(&buf, slog.LevelDebug, false)).With("a", 1)

		first := base.With("b", 2)
		second := base.With("c", 3)

		first.Info("first")
		buf.Reset()
		second.Info("second")

		assert.Contains(t, buf.String(), "c=3")
		assert.NotContains(t, buf.String(), "b=2")
	})

	t.Run("level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer

		slog.New(logging.NewConsoleHandler(&buf, slog.LevelWarn, false)).Info("hidden")

		assert.Empty(t, buf.String())
	})

	assert.False(t, logging.IsTerminal(&bytes.Buffer{}))
}
