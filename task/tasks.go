package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/solarbank-forecast/config"
	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/forecast"
	"github.com/icodeforyou/solarbank-forecast/weather"
	"github.com/robfig/cron/v3"
)

type Tasks struct {
	cron                *cron.Cron
	mu                  sync.RWMutex
	cnfg                *config.AppConfig
	ForecastTask        func()
	WeatherPrefetchTask func()
	MaintenanceTask     func()
}

func NewTasks(
	db *database.Database,
	engine ForecastRunner,
	latest *forecast.Latest,
	logs Windower,
	source weather.Source,
	loc weather.Location,
	cnfg *config.AppConfig,
	publishers ...Publisher,
) *Tasks {
	logger := slog.Default().With("module", "tasks")
	t := &Tasks{
		cron: cron.New(),
		cnfg: cnfg,
	}
	t.ForecastTask = NewForecastTask(logger.With(slog.String("task", "forecast")), engine, db, latest, t.bucket, publishers...)
	t.WeatherPrefetchTask = NewWeatherPrefetchTask(logger.With(slog.String("task", "weather_prefetch")), source, loc, logs, t.radius)
	t.MaintenanceTask = NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, t.Config)
	return t
}

// SetConfig takes effect on the next run of a task, schedules are kept.
func (t *Tasks) SetConfig(cnfg *config.AppConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cnfg = cnfg
}

func (t *Tasks) Config() *config.AppConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cnfg
}

func (t *Tasks) radius() int {
	radius := t.Config().Matcher.WindowRadius
	if radius == nil {
		return 14
	}
	return *radius
}

func (t *Tasks) bucket() time.Duration {
	return t.Config().Forecast.GetBucket()
}

func (t *Tasks) Run() {
	cnfg := t.Config()
	_, err := t.cron.AddFunc(valueOrDefault(cnfg.Forecast.RunAt, "*/15 * * * *"), t.ForecastTask)
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc(valueOrDefault(cnfg.Weather.RunAt, "5 * * * *"), t.WeatherPrefetchTask)
	if err != nil {
		panic(err)
	}
	_, err = t.cron.AddFunc(cnfg.Database.GetMaintenanceAt(), t.MaintenanceTask)
	if err != nil {
		panic(err)
	}
	t.cron.Start()
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}

func valueOrDefault(str, def string) string {
	if str == "" {
		return def
	}
	return str
}
