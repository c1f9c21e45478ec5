package context

import (
	"context"
)

type contextKey int

const (
	contextKeyTraceID contextKey = iota
	contextKeyIdentity
)

// MaxTraceIDLength bounds trace IDs accepted from upstream callers.
const MaxTraceIDLength = 128

// TraceIDFromContext returns the request trace ID, if one was stored.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(contextKeyTraceID).(string)

	return traceID, ok && traceID != ""
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKeyTraceID, traceID)
}

// ValidTraceID reports whether an upstream trace ID may be propagated into
// logs and response headers as is. Only short tokens of letters, digits and
// "-_.:" qualify.
func ValidTraceID(traceID string) bool {
	if traceID == "" || len(traceID) > MaxTraceIDLength {
		return false
	}

	for _, c := range []byte(traceID) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}

	return true
}
