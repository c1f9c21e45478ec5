package logging

import (
	"context"
	"log/slog"
	"strings"
)

// PackageFilterHandler applies per-logger level overrides on top of another
// handler. Logger names are dotted ("svc.borrowsvc.http") and the longest
// matching prefix in Levels wins, so an override may both raise and lower the
// wrapped handler's level. The empty key matches every logger.
type PackageFilterHandler struct {
	next   slog.Handler
	levels map[string]slog.Level
	name   string
}

var _ slog.Handler = (*PackageFilterHandler)(nil)

// NewPackageFilterHandler wraps next. Without levels next is returned as is.
func NewPackageFilterHandler(next slog.Handler, levels map[string]slog.Level) slog.Handler {
	if len(levels) == 0 {
		return next
	}

	return &PackageFilterHandler{next: next, levels: levels}
}

func (h *PackageFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if minLevel, ok := h.override(); ok {
		return level >= minLevel
	}

	return h.next.Enabled(ctx, level)
}

func (h *PackageFilterHandler) override() (slog.Level, bool) {
	parts := strings.Split(h.name, ".")

	for i := len(parts); i >= 0; i-- {
		if level, ok := h.levels[strings.Join(parts[:i], ".")]; ok {
			return level, true
		}
	}

	return 0, false
}

//nolint:wrapcheck
func (h *PackageFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *PackageFilterHandler) WithAttrs(attrs []slog.Attr) Handler {
	name := h.name

	for _, attr := range attrs {
		if attr.Key == loggerKey {
			name = attr.Value.String()
		}
	}

	return &PackageFilterHandler{next: h.next.WithAttrs(attrs), levels: h.levels, name: name}
}

func (h *PackageFilterHandler) WithGroup(name string) Handler {
	return &PackageFilterHandler{next: h.next.WithGroup(name), levels: h.levels, name: h.name}
}
