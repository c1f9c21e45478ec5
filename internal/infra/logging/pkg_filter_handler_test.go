package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/library/internal/infra/logging"
)

func TestPackageFilterHandler(t *testing.T) {
	t.Parallel()

	levels := map[string]slog.Level{
		"svc":           slog.LevelWarn,
		"svc.borrowsvc": slog.LevelDebug,
	}

	tests := []struct {
		name   string
		logger string
		level  slog.Level
		want   bool
	}{
		{name: "prefix raises the level", logger: "svc.catalogsvc", level: slog.LevelInfo, want: false},
		{name: "prefix lets warnings through", logger: "svc.catalogsvc", level: slog.LevelWarn, want: true},
		{name: "longer prefix lowers the level", logger: "svc.borrowsvc.http", level: slog.LevelDebug, want: true},
		{name: "unmatched logger uses the wrapped level", logger: "repo.book.sql", level: slog.LevelInfo, want: true},
		{name: "unmatched logger below the wrapped level", logger: "repo.book.sql", level: slog.LevelDebug, want: false},
		{name: "similar name is not a prefix", logger: "svcx", level: slog.LevelInfo, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}) //nolint:exhaustruct
			logger := slog.New(logging.NewPackageFilterHandler(inner, levels)).With("logger", tt.logger)

			logger.Log(t.Context(), tt.level, "message")

			assert.Equal(t, tt.want, buf.Len() > 0)
		})
	}
}

func TestPackageFilterHandlerWithoutLevels(t *testing.T) {
	t.Parallel()

	inner := slog.NewJSONHandler(&bytes.Buffer{}, nil)

	assert.Same(t, inner, logging.NewPackageFilterHandler(inner, nil))
}
