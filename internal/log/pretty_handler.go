package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	escReset  = "\033[0m"
	escFaint  = "\033[2m"
	escRed    = "\033[31m"
	escGreen  = "\033[32m"
	escYellow = "\033[33m"
	escBlue   = "\033[34m"
)

// prettyHandler renders records as single-line coloured terminal output:
//
//	2026-01-02 15:04:05 INFO  indexed file path=photos/a.jpg dim=512
type prettyHandler struct {
	out   io.Writer
	level slog.Level
	attrs []slog.Attr
	mu    *sync.Mutex
}

func newPrettyHandler(w io.Writer, level slog.Level) *prettyHandler {
	return &prettyHandler{
		out:   w,
		level: level,
		mu:    &sync.Mutex{},
	}
}

// Enabled implements slog.Handler.
func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(escFaint)
	buf.WriteString(ts.Format("2006-01-02 15:04:05"))
	buf.WriteString(escReset)
	buf.WriteByte(' ')

	colour, label := levelLabel(r.Level)
	buf.WriteString(colour)
	buf.WriteString(label)
	buf.WriteString(escReset)
	buf.WriteByte(' ')

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, a)
		return true
	})

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

// WithAttrs implements slog.Handler.
func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &prettyHandler{out: h.out, level: h.level, attrs: merged, mu: h.mu}
}

// WithGroup implements slog.Handler. Groups are flattened; the group name is
// dropped since lumen does not use grouped attributes.
func (h *prettyHandler) WithGroup(string) slog.Handler { return h }

func levelLabel(level slog.Level) (colour, label string) {
	switch {
	case level < slog.LevelInfo:
		return escBlue, "DEBUG"
	case level < slog.LevelWarn:
		return escGreen, "INFO "
	case level < slog.LevelError:
		return escYellow, "WARN "
	default:
		return escRed, "ERROR"
	}
}

func writeAttr(buf *bytes.Buffer, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(escFaint)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(escReset)

	val := a.Value.String()
	if a.Value.Kind() == slog.KindString && strings.ContainsAny(val, " \t\"") {
		val = fmt.Sprintf("%q", val)
	}
	buf.WriteString(val)
}
