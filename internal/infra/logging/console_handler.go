package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	ansiReset     = "\033[0m"
	ansiRed       = "\033[31m"
	ansiGreen     = "\033[32m"
	ansiYellow    = "\033[33m"
	ansiCyan      = "\033[36m"
	ansiGray      = "\033[90m"
	ansiUnderline = "\033[4m"
)

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiGreen
	default:
		return ansiCyan
	}
}

// IsTerminal reports whether w is a terminal, so that ConsoleHandler.Color
// can be left off for files and pipes.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)

	return ok && term.IsTerminal(int(file.Fd()))
}

// ConsoleHandler renders one human-readable line per record, followed by a
// line naming the calling function and source position. It does not check
// Level in Handle; slog.Logger asks Enabled first.
type ConsoleHandler struct {
	Output io.Writer
	Level  slog.Leveler
	Color  bool

	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler returns a ConsoleHandler whose derived handlers share one
// write lock.
func NewConsoleHandler(output io.Writer, level slog.Leveler, color bool) *ConsoleHandler {
	return &ConsoleHandler{Output: output, Level: level, Color: color, mu: &sync.Mutex{}}
}

func (h *ConsoleHandler) paint(b *strings.Builder, code, s string) {
	if h.Color {
		b.WriteString(code)
		b.WriteString(s)
		b.WriteString(ansiReset)

		return
	}

	b.WriteString(s)
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	h.paint(&b, ansiGray, r.Time.Format("15:04:05.000000"))
	b.WriteByte(' ')
	h.paint(&b, levelColor(r.Level), "["+r.Level.String()+"]")
	b.WriteByte(' ')
	b.WriteString(r.Message)

	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		b.WriteByte(' ')
		h.paint(&b, ansiGray, "|")
		h.renderAttrs(&b, "", h.attrs)

		prefix := h.groupPrefix()

		r.Attrs(func(a slog.Attr) bool {
			h.renderAttrs(&b, prefix, []slog.Attr{a})

			return true
		})
	}

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()

		b.WriteString("\n-> ")
		h.paint(&b, ansiGray, path.Base(frame.Function)+"()")
		b.WriteString(" in ")
		h.paint(&b, ansiUnderline, frame.File+":"+strconv.Itoa(frame.Line))
	}

	b.WriteByte('\n')

	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}

	_, err := io.WriteString(h.Output, b.String())

	return err //nolint:wrapcheck
}

func (h *ConsoleHandler) groupPrefix() string {
	if len(h.groups) == 0 {
		return ""
	}

	return strings.Join(h.groups, ".") + "."
}

func (h *ConsoleHandler) renderAttrs(b *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			h.renderAttrs(b, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		b.WriteString(" " + prefix + attr.Key + "=")
		h.paint(b, ansiGray, attr.Value.String())
	}
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	return &ConsoleHandler{
		Output: h.Output,
		Level:  h.Level,
		Color:  h.Color,
		mu:     h.mu,
		attrs:  slices.Clip(h.attrs),
		groups: slices.Clip(h.groups),
	}
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	c := h.clone()
	prefix := h.groupPrefix()

	for _, attr := range attrs {
		attr.Key = prefix + attr.Key
		c.attrs = append(c.attrs, attr)
	}

	return c
}

func (h *ConsoleHandler) WithGroup(name string) Handler {
	c := h.clone()
	c.groups = append(c.groups, name)

	return c
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.Level.Level() <= level
}
