package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
)

// LogEntryRow is one persisted log record. Module and Day are lifted out of
// the record attributes so failures of one day can be looked up.
type LogEntryRow struct {
	Timestamp time.Time
	Level     int
	Module    string
	Day       days.Day
	Message   string
	Attrs     string
}

// LogQuery selects log entries, empty Module or Day match everything.
type LogQuery struct {
	MinLevel slog.Level
	Module   string
	Day      days.Day
	Page     int
	PageSize int
}

func (d *Database) SaveLogEntry(ctx context.Context, r LogEntryRow) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO log (timestamp, level, module, day, message, attrs)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Level,
		r.Module,
		string(r.Day),
		r.Message,
		r.Attrs)
	if err != nil {
		return fmt.Errorf("saving log entry: %w", err)
	}
	return nil
}

// GetLogEntries returns the newest matching entries first.
func (d *Database) GetLogEntries(ctx context.Context, q LogQuery) ([]LogEntryRow, error) {
	page := max(q.Page, 1)
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 10
	}

	where := []string{"level >= ?"}
	args := []any{int(q.MinLevel)}
	if q.Module != "" {
		where = append(where, "module = ?")
		args = append(args, q.Module)
	}
	if q.Day != "" {
		where = append(where, "day = ?")
		args = append(args, string(q.Day))
	}
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := d.read.QueryContext(ctx, `
		SELECT timestamp, level, module, day, message, attrs
		FROM log
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching log entries: %w", err)
	}
	defer rows.Close()

	var entries []LogEntryRow
	for rows.Next() {
		var r LogEntryRow
		var ts, day string
		if err := rows.Scan(&ts, &r.Level, &r.Module, &day, &r.Message, &r.Attrs); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		r.Day = days.Day(day)
		if r.Timestamp, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		entries = append(entries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading log rows: %w", err)
	}

	return entries, nil
}

// PurgeLog keeps the newest maxLogEntries entries.
func (d *Database) PurgeLog(ctx context.Context, maxLogEntries int) error {
	d.logger.Debug("purging log")
	_, err := d.write.ExecContext(ctx, `
		DELETE FROM log WHERE id <= (SELECT id FROM log ORDER BY id DESC LIMIT 1 OFFSET ?)`, maxLogEntries)
	if err != nil {
		return fmt.Errorf("purging log: %w", err)
	}
	return nil
}
