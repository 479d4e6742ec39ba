package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/days"
)

type LogAttrFormat string

// Attributes stored in their own log columns.
const (
	moduleKey = "module"
	dayKey    = "day"
)

const (
	LogAttrFormatText LogAttrFormat = "TEXT"
	LogAttrFormatJSON LogAttrFormat = "JSON"
)

// LogWriter stores a single log entry.
type LogWriter interface {
	SaveLogEntry(ctx context.Context, r database.LogEntryRow) error
}

// SQLiteHandler writes records to the log table. Attributes bound with
// WithAttrs are stored ahead of the record's own attributes, the module and
// day attributes go to their own columns.
type SQLiteHandler struct {
	db       LogWriter
	minLevel slog.Level
	format   LogAttrFormat
	attrs    []slog.Attr
	group    string
}

func NewSQLiteHandler(db LogWriter, minLevel slog.Level, format LogAttrFormat) *SQLiteHandler {
	return &SQLiteHandler{db: db, minLevel: minLevel, format: format}
}

func (h *SQLiteHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.minLevel {
		return nil
	}

	all := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	all = append(all, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		all = append(all, h.qualify(a))
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	row := database.LogEntryRow{Timestamp: ts, Level: int(r.Level), Message: r.Message}
	attrs := all[:0]
	for _, a := range all {
		switch a.Key {
		case moduleKey:
			row.Module = a.Value.String()
		case dayKey:
			row.Day = days.Day(a.Value.String())
		default:
			attrs = append(attrs, a)
		}
	}
	row.Attrs = formatAttrs(h.format, attrs)

	return h.db.SaveLogEntry(ctx, row)
}

func formatAttrs(format LogAttrFormat, attrs []slog.Attr) string {
	if len(attrs) == 0 {
		return ""
	}

	if strings.EqualFold(string(format), string(LogAttrFormatText)) {
		var b strings.Builder
		for _, a := range attrs {
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			b.WriteString(a.Key)
			b.WriteString("=")
			b.WriteString(strings.ReplaceAll(strings.ReplaceAll(a.Value.String(), "=", "\\="), ";", "\\;"))
		}
		return b.String()
	}

	list := make([]map[string]string, len(attrs))
	for i, a := range attrs {
		list[i] = map[string]string{a.Key: a.Value.String()}
	}
	jsonBytes, err := json.Marshal(list)
	if err != nil {
		return fmt.Sprintf(`{"error": "%v"}`, err)
	}
	return string(jsonBytes)
}

func (h *SQLiteHandler) qualify(a slog.Attr) slog.Attr {
	if h.group == "" {
		return a
	}
	return slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
}

func (h *SQLiteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		h2.attrs = append(h2.attrs, h.qualify(a))
	}
	return &h2
}

func (h *SQLiteHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group == "" {
		h2.group = name
	} else {
		h2.group = h.group + "." + name
	}
	return &h2
}

func (h *SQLiteHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel
}
