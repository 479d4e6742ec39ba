package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/forecast"
)

type ForecastRunner interface {
	Run(ctx context.Context, now time.Time) (*forecast.Forecast, error)
}

type ForecastStore interface {
	SaveForecastRun(ctx context.Context, run database.ForecastRunRow, values []database.ForecastValueRow) (int64, error)
}

// Publisher receives the JSON report of every view after a successful run.
type Publisher interface {
	PublishForecast(view string, payload []byte) error
}

var views = []forecast.View{forecast.ViewToday, forecast.ViewTomorrow, forecast.ViewTotal}

func NewForecastTask(
	logger *slog.Logger,
	engine ForecastRunner,
	db ForecastStore,
	latest *forecast.Latest,
	bucket func() time.Duration,
	publishers ...Publisher,
) func() {
	return func() {
		runForecastTask(logger, engine, db, latest, bucket(), publishers, time.Now())
	}
}

func runForecastTask(
	logger *slog.Logger,
	engine ForecastRunner,
	db ForecastStore,
	latest *forecast.Latest,
	bucket time.Duration,
	publishers []Publisher,
	now time.Time,
) {
	logger.Debug("running forecast task...")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	f, err := engine.Run(ctx, now)
	latest.Set(f, err)
	if err != nil {
		logger.Warn("forecast task failed", slog.Any("error", err))
		return
	}

	run, values, err := forecastRunRows(f, bucket)
	if err != nil {
		logger.Error("forecast task error, building rows", slog.Any("error", err))
	} else if _, err := db.SaveForecastRun(ctx, run, values); err != nil {
		logger.Error("forecast task error, saving run", slog.Any("error", err))
	}

	for _, v := range views {
		report, err := f.Report(v, bucket)
		if err != nil {
			logger.Warn("forecast task, no report", slog.String("view", string(v)), slog.Any("error", err))
			continue
		}
		payload, err := json.Marshal(report)
		if err != nil {
			logger.Error("forecast task error, encoding report", slog.String("view", string(v)), slog.Any("error", err))
			continue
		}
		for _, p := range publishers {
			if err := p.PublishForecast(string(v), payload); err != nil {
				logger.Error("forecast task error, publishing", slog.String("view", string(v)), slog.Any("error", err))
			}
		}
	}

	logger.Info("forecast task done",
		slog.String("day", f.Day.String()),
		slog.Float64("finalSoc", f.FinalSoC))
}

// forecastRunRows flattens the relative table of the whole horizon.
func forecastRunRows(f *forecast.Forecast, bucket time.Duration) (database.ForecastRunRow, []database.ForecastValueRow, error) {
	run := database.ForecastRunRow{
		Day:       f.Day,
		CreatedAt: f.CreatedAt,
		Adapted:   f.Adapted,
		StartSoC:  f.StartSoC,
		FinalSoC:  f.FinalSoC,
		Trip:      f.Trip.String(),
	}
	for _, a := range f.Analogs {
		run.Analogs = append(run.Analogs, a.Day)
	}

	table, err := f.Partition.Relative(forecast.ViewTotal, bucket)
	if err != nil {
		return run, nil, err
	}

	values := make([]database.ForecastValueRow, 0, len(table.Rows)*len(table.Channels))
	for _, row := range table.Rows {
		for _, c := range table.Channels {
			values = append(values, database.ForecastValueRow{
				Start:     row.Start,
				Stop:      row.Stop,
				Simulated: row.Simulated,
				Channel:   c,
				Value:     row.Values[c],
			})
		}
	}
	return run, values, nil
}
