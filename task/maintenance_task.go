package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/solarbank-forecast/config"
)

type Maintainer interface {
	Backup(ctx context.Context) error
	PurgeBackups(ctx context.Context, retentionDays int) error
	PurgeLog(ctx context.Context, maxLogEntries int) error
	PurgeSamples(ctx context.Context, retentionDays int) error
	PurgeForecasts(ctx context.Context, retentionDays int) error
}

func NewMaintenanceTask(logger *slog.Logger, db Maintainer, cnfg func() *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")
		c := cnfg()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := db.Backup(ctx); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
		}

		if err := db.PurgeBackups(ctx, c.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeLog(ctx, c.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeSamples(ctx, c.Database.GetSampleRetentionDays()); err != nil {
			logger.Error("samples maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeForecasts(ctx, c.Database.GetForecastRetentionDays()); err != nil {
			logger.Error("forecast maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}
