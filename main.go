package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/icodeforyou/solarbank-forecast/adapter"
	"github.com/icodeforyou/solarbank-forecast/cache"
	"github.com/icodeforyou/solarbank-forecast/config"
	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/forecast"
	"github.com/icodeforyou/solarbank-forecast/logging"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/task"
	"github.com/icodeforyou/solarbank-forecast/telemetry"
	"github.com/icodeforyou/solarbank-forecast/weather"
	"github.com/icodeforyou/solarbank-forecast/weather/providers"
	"github.com/icodeforyou/solarbank-forecast/www"
	"github.com/lmittmann/tint"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	loc, err := cnfg.Location.Weather()
	if err != nil {
		panic(fmt.Sprintf("failed to read location: %v", err))
	}

	settings, err := cnfg.ForecastSettings()
	if err != nil {
		panic(fmt.Sprintf("invalid forecast settings: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("solarbank forecast is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path, loc.TZ)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	var dayCache cache.Days[series.DayLog] = cache.Noop[series.DayLog]{}
	if cnfg.Cache.IsEnabled() {
		dayCache = cache.NewMemory[series.DayLog]()
	}
	dayLogs := database.NewDayLogs(logger.With("module", "day_logs"), db, dayCache)

	source := weather.NewStored(
		logger.With("module", "weather"),
		db,
		weather.NewChain(logger.With("module", "weather"), providers.FromNames(logger, cnfg.Weather.GetProviders())...))

	adapters := adapter.New(logger.With("module", "adapter"), source, loc, cnfg.Adapter.GetSmoothing())
	engine := forecast.NewEngine(logger.With("module", "forecast"), dayLogs, adapters, loc.TZ, settings)
	latest := &forecast.Latest{}

	var tasks *task.Tasks
	server := www.NewServer(cnfg.Api, www.Deps{
		Latest:       latest,
		Logs:         dayLogs,
		Adapters:     adapters,
		Runs:         db,
		Settings:     engine.Settings,
		Bucket:       func() time.Duration { return tasks.Config().Forecast.GetBucket() },
		ForecastTask: func() { tasks.ForecastTask() },
		LogReader:    db,
		Location:     loc.TZ,
		SysInfo: www.SysInfo{
			Version:   Version,
			StartedAt: time.Now(),
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
			Timezone:  loc.TZ.String(),
			Providers: cnfg.Weather.GetProviders(),
		},
	})

	publishers := []task.Publisher{server.Hub()}

	tm := telemetry.New(logger.With("module", "telemetry"), telemetry.Options{
		Host:              cnfg.Mqtt.Host,
		Port:              cnfg.Mqtt.Port,
		Username:          cnfg.Mqtt.Username,
		Password:          cnfg.Mqtt.Password,
		ClientID:          cnfg.Mqtt.GetClientID(),
		Prefix:            cnfg.Mqtt.GetPrefix(),
		InactivityTimeout: cnfg.Mqtt.GetInactivityTimeout(),
	}, dayLogs)

	if isDevMode() {
		logger.Info("dev mode, skipping telemetry connection")
	} else {
		if err := tm.Connect(); err != nil {
			panic(fmt.Sprintf("telemetry connection error: %v", err))
		}
		defer tm.Disconnect()
		publishers = append(publishers, tm)
	}

	tasks = task.NewTasks(db, engine, latest, dayLogs, source, loc, cnfg, publishers...)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		tasks.Run()
		defer tasks.Stop()
	}

	err = config.Watch(*configPath, logger.With("module", "config"), func(c *config.AppConfig) {
		s, err := c.ForecastSettings()
		if err != nil {
			logger.Error("new forecast settings rejected", slog.Any("error", err))
			return
		}
		engine.SetSettings(s)
		tasks.SetConfig(c)
	})
	if err != nil {
		logger.Warn("config file is not watched", slog.Any("error", err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
