package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/library/internal/infra/logging"
)

//nolint:paralleltest
func TestConfigure(t *testing.T) {
	var buf bytes.Buffer

	logging.Configure(context.Background(), logging.LoggerConfig{
		Level:        "info",
		Filter:       "repo:error, svc.borrowsvc:debug",
		JSON:         true,
		OutputHandle: &buf,
	}, "library.test")

	t.Cleanup(func() {
		logging.Configure(context.Background(), logging.LoggerConfig{Output: "discard"}, "")
	})

	records := func() []map[string]any {
		var out []map[string]any

		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}

			var record map[string]any
			require.NoError(t, jsoniter.Unmarshal([]byte(line), &record))

			out = append(out, record)
		}

		buf.Reset()

		return out
	}

	logging.GetLogger("svc.catalogsvc").Info("catalog info")
	logging.GetLogger("svc.catalogsvc").Debug("catalog debug")
	logging.GetLogger("svc.borrowsvc.http").Debug("borrow debug")
	logging.GetLogger("repo.book.sql").Warn("repo warn")

	got := records()
	require.Len(t, got, 2)
	assert.Equal(t, "catalog info", got[0]["msg"])
	assert.Equal(t, "library.test", got[0]["app"])
	assert.Equal(t, "svc.catalogsvc", got[0]["logger"])
	assert.Equal(t, "borrow debug", got[1]["msg"])

	logging.SetLevel(logging.LevelDebug)
	t.Cleanup(func() { logging.SetLevel(logging.LevelInfo) })

	logging.GetLogger("svc.catalogsvc").Debug("catalog debug")

	got = records()
	require.Len(t, got, 1)
	assert.Equal(t, "catalog debug", got[0]["msg"])
}

//nolint:paralleltest
func TestGetLoggerBeforeConfigure(t *testing.T) {
	logging.Configure(context.Background(), logging.LoggerConfig{Output: "discard"}, "")

	assert.NotPanics(t, func() {
		logging.GetLogger("anything").Error("dropped")
	})
}
