package www

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/logging"
)

type LogReader interface {
	GetLogEntries(ctx context.Context, q database.LogQuery) ([]database.LogEntryRow, error)
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Module    string `json:"module,omitempty"`
	Day       string `json:"day,omitempty"`
	Message   string `json:"message"`
	Attrs     string `json:"attrs"`
}

type logResponse struct {
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	Entries  []logEntry `json:"entries"`
}

func NewLogHandler(logger *slog.Logger, db LogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		page := max(intOrDefault(r.URL, "page", 1), 1)
		pageSize := intOrDefault(r.URL, "size", 25)
		if pageSize < 1 {
			pageSize = 25
		}
		level := slog.LevelInfo
		if v := r.URL.Query().Get("level"); v != "" {
			lvl, err := logging.ParseLevel(v)
			if err != nil {
				writeError(logger, w, http.StatusBadRequest, err)
				return
			}
			level = lvl
		}

		q := database.LogQuery{
			MinLevel: level,
			Module:   r.URL.Query().Get("module"),
			Page:     page,
			PageSize: pageSize,
		}
		if v := r.URL.Query().Get("day"); v != "" {
			day, err := days.Parse(v)
			if err != nil {
				writeError(logger, w, http.StatusBadRequest, err)
				return
			}
			q.Day = day
		}

		e, err := db.GetLogEntries(r.Context(), q)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}

		resp := logResponse{Page: page, PageSize: pageSize, Entries: make([]logEntry, len(e))}
		for i, row := range e {
			resp.Entries[i] = logEntry{
				Timestamp: row.Timestamp.Format(time.RFC3339),
				Level:     slog.Level(row.Level).String(),
				Module:    row.Module,
				Day:       string(row.Day),
				Message:   row.Message,
				Attrs:     row.Attrs,
			}
		}
		writeJSON(logger, w, http.StatusOK, resp)
	}
}
