package task

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/weather"
)

type Windower interface {
	GetWindow(ctx context.Context, radius int, ref days.Day) ([]days.Day, error)
}

// NewWeatherPrefetchTask fetches the cloud cover of every closed day the
// forecast may pick as an analog, or the day after one, so a stored source
// keeps it. Daylight of today and tomorrow is fetched as well.
func NewWeatherPrefetchTask(logger *slog.Logger, source weather.Source, loc weather.Location, logs Windower, radius func() int) func() {
	return func() {
		runWeatherPrefetchTask(logger, source, loc, logs, radius(), time.Now())
	}
}

func runWeatherPrefetchTask(logger *slog.Logger, source weather.Source, loc weather.Location, logs Windower, radius int, now time.Time) {
	logger.Debug("running weather prefetch task...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	today := days.FromTime(now.In(loc.TZ))
	window, err := logs.GetWindow(ctx, radius, today)
	if err != nil {
		logger.Error("weather prefetch task error", slog.Any("error", err))
		return
	}

	var closed []days.Day
	for _, d := range window {
		for _, c := range []days.Day{d, d.Add(1)} {
			if c.Before(today) && !slices.Contains(closed, c) {
				closed = append(closed, c)
			}
		}
	}

	failed := 0
	for _, d := range closed {
		if _, err := source.HourlyCloudCover(ctx, d, loc); err != nil {
			failed++
			logger.Debug("weather prefetch task, no cloud cover", slog.String("day", d.String()), slog.Any("error", err))
		}
	}

	for _, d := range []days.Day{today, today.Add(1)} {
		if _, err := source.DaylightMinutes(ctx, d, loc); err != nil {
			logger.Warn("weather prefetch task, no daylight", slog.String("day", d.String()), slog.Any("error", err))
		}
	}

	logger.Info("weather prefetch task done", slog.Int("noOfDays", len(closed)), slog.Int("noOfFailed", failed))
}
