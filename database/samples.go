package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/series"
)

type Sample struct {
	Time    time.Time
	Channel series.Channel
	Value   float64
}

// SaveSamples upserts samples, a later write of the same minute and channel wins.
func (d *Database) SaveSamples(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction for samples: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (day, ts, channel, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ts, channel) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare samples insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		t := s.Time.In(d.loc).Truncate(time.Second)
		if _, err := stmt.ExecContext(ctx, days.FromTime(t), t.Unix(), string(s.Channel), s.Value); err != nil {
			return fmt.Errorf("saving sample %s %s: %w", s.Channel, t.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit samples: %w", err)
	}

	d.logger.Debug(fmt.Sprintf("saved %d samples", len(samples)))
	return nil
}

// GetDayLog pivots the samples of a day into a log. Cells missing for a
// timestamp are zero, channels never written that day are absent.
func (d *Database) GetDayLog(ctx context.Context, day days.Day) (series.DayLog, bool, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT ts, channel, value
		FROM samples
		WHERE day = ?
		ORDER BY ts ASC`, day)
	if err != nil {
		return series.DayLog{}, false, fmt.Errorf("fetching samples for %s: %w", day, err)
	}
	defer rows.Close()

	var times []time.Time
	cells := make(map[series.Channel]map[int]float64)
	var last int64 = -1

	for rows.Next() {
		var ts int64
		var channel string
		var value float64
		if err := rows.Scan(&ts, &channel, &value); err != nil {
			return series.DayLog{}, false, fmt.Errorf("scanning sample: %w", err)
		}
		if ts != last {
			times = append(times, time.Unix(ts, 0).In(d.loc))
			last = ts
		}
		c := series.Channel(channel)
		if cells[c] == nil {
			cells[c] = make(map[int]float64)
		}
		cells[c][len(times)-1] = value
	}
	if err := rows.Err(); err != nil {
		return series.DayLog{}, false, fmt.Errorf("reading samples: %w", err)
	}

	if len(times) == 0 {
		return series.DayLog{}, false, nil
	}

	f := series.NewFrame(times)
	for c, byIndex := range cells {
		values := make([]float64, len(times))
		for i, v := range byIndex {
			values[i] = v
		}
		f.Columns[c] = values
	}

	return series.DayLog{Day: day, Frame: f}, true, nil
}

// FirstDay is the oldest day with samples.
func (d *Database) FirstDay(ctx context.Context) (days.Day, bool, error) {
	var day sql.NullString
	err := d.read.QueryRowContext(ctx, `SELECT MIN(day) FROM samples`).Scan(&day)
	if err != nil {
		return "", false, fmt.Errorf("fetching first day: %w", err)
	}
	if !day.Valid {
		return "", false, nil
	}
	return days.Day(day.String), true, nil
}

// ExistingDays returns the subset of dayIDs having samples, in the given order.
func (d *Database) ExistingDays(ctx context.Context, dayIDs []days.Day) ([]days.Day, error) {
	if len(dayIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(dayIDs))
	for i, day := range dayIDs {
		args[i] = string(day)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dayIDs)), ",")

	rows, err := d.read.QueryContext(ctx,
		fmt.Sprintf(`SELECT DISTINCT day FROM samples WHERE day IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("fetching existing days: %w", err)
	}
	defer rows.Close()

	found := make(map[days.Day]bool)
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scanning day: %w", err)
		}
		found[days.Day(day)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading days: %w", err)
	}

	return slices.DeleteFunc(slices.Clone(dayIDs), func(day days.Day) bool { return !found[day] }), nil
}
