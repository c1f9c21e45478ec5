package context_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	context_ "github.com/mkrupp/library/internal/infra/context"
)

func TestValidTraceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		traceID string
		want    bool
	}{
		{traceID: "0199f0a2-7c1e-7d3a-9b1e-2f6c4a8d1e00", want: true},
		{traceID: "gw:req_42.1", want: true},
		{traceID: "", want: false},
		{traceID: "with space", want: false},
		{traceID: "line\nbreak", want: false},
		{traceID: "quote\"", want: false},
		{traceID: strings.Repeat("a", context_.MaxTraceIDLength), want: true},
		{traceID: strings.Repeat("a", context_.MaxTraceIDLength+1), want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, context_.ValidTraceID(tt.traceID), "%q", tt.traceID)
	}
}

func TestTraceIDFromContext(t *testing.T) {
	t.Parallel()

	_, ok := context_.TraceIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = context_.TraceIDFromContext(context_.WithTraceID(context.Background(), ""))
	assert.False(t, ok)

	traceID, ok := context_.TraceIDFromContext(context_.WithTraceID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", traceID)
}
