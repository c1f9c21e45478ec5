package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/library/internal/domain"
	context_ "github.com/mkrupp/library/internal/infra/context"
	"github.com/mkrupp/library/internal/infra/logging"
)

func TestTracingHandlerAddsTraceAndCaller(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(logging.NewTracingHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := context_.WithTraceID(context.Background(), "trace-1")
	ctx = context_.WithIdentity(ctx, domain.Identity{Username: "alice", Role: domain.RoleLibrarian})

	logger.InfoContext(ctx, "hello")

	var record map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, map[string]any{"id": "trace-1"}, record["trace"])
	assert.Equal(t, map[string]any{"username": "alice", "role": "librarian"}, record["caller"])
}

func TestTracingHandlerWithoutContextValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(logging.NewTracingHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("plain")

	var record map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &record))

	assert.NotContains(t, record, "trace")
	assert.NotContains(t, record, "caller")
}
