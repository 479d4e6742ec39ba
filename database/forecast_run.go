package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/convert"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/slice"
)

type ForecastRunRow struct {
	ID        int64
	Day       days.Day
	CreatedAt time.Time
	Adapted   bool
	Analogs   []days.Day
	StartSoC  float64
	FinalSoC  float64
	Trip      string
}

// ForecastValueRow is the mean power of one channel within [Start, Stop).
type ForecastValueRow struct {
	Start     time.Time
	Stop      time.Time
	Simulated bool
	Channel   series.Channel
	Value     float64
}

func (d *Database) SaveForecastRun(ctx context.Context, run ForecastRunRow, values []ForecastValueRow) (int64, error) {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("start transaction for forecast run: %w", err)
	}
	defer tx.Rollback()

	analogs := strings.Join(slice.Map(run.Analogs, days.Day.String), ",")
	res, err := tx.ExecContext(ctx, `
		INSERT INTO forecast_run (day, created_at, adapted, analogs, start_soc, final_soc, trip)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Day,
		run.CreatedAt.UTC().Format(time.RFC3339),
		run.Adapted,
		analogs,
		convert.RoundFloat64(run.StartSoC, 4),
		convert.RoundFloat64(run.FinalSoC, 4),
		run.Trip)
	if err != nil {
		return 0, fmt.Errorf("saving forecast run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting forecast run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecast_row (run_id, start, stop, simulated, channel, value)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare forecast row insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range values {
		_, err := stmt.ExecContext(ctx, id,
			v.Start.UTC().Format(time.RFC3339),
			v.Stop.UTC().Format(time.RFC3339),
			v.Simulated,
			string(v.Channel),
			convert.TwoDecimals(v.Value))
		if err != nil {
			return 0, fmt.Errorf("saving forecast row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit forecast run: %w", err)
	}

	d.logger.Debug("forecast run saved", "id", id, "day", run.Day, "rows", len(values))
	return id, nil
}

// GetLatestForecastRun returns the most recent run and its values ordered by time.
func (d *Database) GetLatestForecastRun(ctx context.Context) (ForecastRunRow, []ForecastValueRow, bool, error) {
	var run ForecastRunRow
	var day, createdAt, analogs string
	err := d.read.QueryRowContext(ctx, `
		SELECT id, day, created_at, adapted, analogs, start_soc, final_soc, trip
		FROM forecast_run
		ORDER BY id DESC
		LIMIT 1`).Scan(&run.ID, &day, &createdAt, &run.Adapted, &analogs, &run.StartSoC, &run.FinalSoC, &run.Trip)
	if errors.Is(err, sql.ErrNoRows) {
		return run, nil, false, nil
	}
	if err != nil {
		return run, nil, false, fmt.Errorf("fetching latest forecast run: %w", err)
	}

	run.Day = days.Day(day)
	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return run, nil, false, fmt.Errorf("parsing created_at: %w", err)
	}
	if analogs != "" {
		run.Analogs = slice.Map(strings.Split(analogs, ","), func(s string) days.Day { return days.Day(s) })
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT start, stop, simulated, channel, value
		FROM forecast_row
		WHERE run_id = ?
		ORDER BY start, channel ASC`, run.ID)
	if err != nil {
		return run, nil, false, fmt.Errorf("fetching forecast rows: %w", err)
	}
	defer rows.Close()

	var values []ForecastValueRow
	for rows.Next() {
		var v ForecastValueRow
		var start, stop, channel string
		if err := rows.Scan(&start, &stop, &v.Simulated, &channel, &v.Value); err != nil {
			return run, nil, false, fmt.Errorf("scanning forecast row: %w", err)
		}
		if v.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return run, nil, false, fmt.Errorf("parsing start: %w", err)
		}
		if v.Stop, err = time.Parse(time.RFC3339, stop); err != nil {
			return run, nil, false, fmt.Errorf("parsing stop: %w", err)
		}
		v.Start, v.Stop = v.Start.In(d.loc), v.Stop.In(d.loc)
		v.Channel = series.Channel(channel)
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return run, nil, false, fmt.Errorf("reading forecast rows: %w", err)
	}

	return run, values, true, nil
}
