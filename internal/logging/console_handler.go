package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const consoleTimestampLayout = "2006-01-02 15:04:05"

// consoleHandler renders compact single-line records for interactive use.
// Component, item, user, and stage attributes are hoisted into a bracketed
// prefix so pipeline activity for one item reads as a coherent thread.
type consoleHandler struct {
	mu     sync.Mutex
	writer io.Writer
	level  *slog.LevelVar
	attrs  []slog.Attr
	groups []string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar) slog.Handler {
	return &consoleHandler{writer: w, level: lvl}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	kvs := make(map[string]string, record.NumAttrs()+len(h.attrs))
	var order []string
	collect := func(prefix string, attr slog.Attr) {
		key := attr.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		if _, ok := kvs[key]; !ok {
			order = append(order, key)
		}
		kvs[key] = formatValue(attr.Value)
	}
	prefix := strings.Join(h.groups, ".")
	for _, attr := range h.attrs {
		collect(prefix, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(prefix, attr)
		return true
	})

	var header strings.Builder
	header.WriteString(timestamp.In(time.Local).Format(consoleTimestampLayout))
	header.WriteString(" ")
	header.WriteString(fmt.Sprintf("%-5s", strings.ToUpper(record.Level.String())))

	for _, key := range []string{FieldComponent, FieldUser, FieldItemID, FieldStage} {
		if value, ok := kvs[key]; ok && value != "" {
			header.WriteString(" [")
			header.WriteString(value)
			header.WriteString("]")
			delete(kvs, key)
		}
	}

	header.WriteString(" ")
	header.WriteString(strings.TrimSpace(record.Message))

	rest := make([]string, 0, len(kvs))
	for _, key := range order {
		value, ok := kvs[key]
		if !ok {
			continue
		}
		rest = append(rest, key+"="+value)
	}
	sort.Strings(rest)
	if len(rest) > 0 {
		header.WriteString(" ")
		header.WriteString(strings.Join(rest, " "))
	}
	header.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, header.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &consoleHandler{
		writer: h.writer,
		level:  h.level,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := &consoleHandler{
		writer: h.writer,
		level:  h.level,
		attrs:  append([]slog.Attr{}, h.attrs...),
		groups: append(append([]string{}, h.groups...), name),
	}
	return clone
}

func formatValue(value slog.Value) string {
	value = value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		text := value.String()
		if strings.ContainsAny(text, " \t") {
			return fmt.Sprintf("%q", text)
		}
		return text
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().In(time.Local).Format(consoleTimestampLayout)
	default:
		text := fmt.Sprint(value.Any())
		if strings.ContainsAny(text, " \t") {
			return fmt.Sprintf("%q", text)
		}
		return text
	}
}
