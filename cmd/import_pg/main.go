package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/config"
	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/telemetry"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"
)

const batchSize = 5000

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dsn := flag.String("dsn", os.Getenv("PG_DSN"), "postgres connection string")
	table := flag.String("table", "metrics", "table with timestamp, metric_name and value columns")
	fromStr := flag.String("from", "", "first day YYMMDD to import")
	toStr := flag.String("to", "", "last day YYMMDD to import")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	cnfg, err := config.Load(*configPath)
	if err != nil {
		fail(logger, err)
	}
	tz, err := cnfg.Location.GetTimezone()
	if err != nil {
		fail(logger, err)
	}
	if *dsn == "" {
		fail(logger, fmt.Errorf("no postgres connection string, use -dsn or PG_DSN"))
	}
	if !identifier.MatchString(*table) {
		fail(logger, fmt.Errorf("invalid table name %q", *table))
	}
	from, err := days.Parse(*fromStr)
	if err != nil {
		fail(logger, err)
	}
	to, err := days.Parse(*toStr)
	if err != nil {
		fail(logger, err)
	}

	ctx := context.Background()

	pg, err := sql.Open("postgres", *dsn)
	if err != nil {
		fail(logger, err)
	}
	defer pg.Close()

	db, err := database.New(ctx, cnfg.Database.Path, tz)
	if err != nil {
		fail(logger, err)
	}
	defer db.Close()
	db.SetLogger(logger.With("module", "database"))

	rows, err := pg.QueryContext(ctx, fmt.Sprintf(`
		SELECT timestamp, metric_name, value
		FROM %s
		WHERE timestamp >= $1 AND timestamp < $2 AND value IS NOT NULL
		ORDER BY timestamp ASC`, *table),
		from.Midnight(tz), to.End(tz))
	if err != nil {
		fail(logger, err)
	}
	defer rows.Close()

	n, err := copySamples(ctx, rows, db)
	if err != nil {
		fail(logger, err)
	}
	logger.Info("import done", slog.Int("noOfSamples", n), slog.String("from", from.String()), slog.String("to", to.String()))
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// copySamples reduces the rows to minute means and saves them in batches.
// Rows must be ordered by timestamp.
func copySamples(ctx context.Context, rows rowScanner, sink telemetry.SampleSink) (int, error) {
	agg := telemetry.NewAggregator(3600)
	var batch []database.Sample
	saved := 0

	save := func(force bool) error {
		if len(batch) == 0 || (!force && len(batch) < batchSize) {
			return nil
		}
		if err := sink.SaveSamples(ctx, batch); err != nil {
			return err
		}
		saved += len(batch)
		batch = batch[:0]
		return nil
	}

	for rows.Next() {
		var ts time.Time
		var name string
		var value float64
		if err := rows.Scan(&ts, &name, &value); err != nil {
			return saved, fmt.Errorf("scanning row: %w", err)
		}
		channel := series.Channel(strings.ToUpper(strings.TrimSpace(name)))
		flushed, ok := agg.Add(ts, map[series.Channel]float64{channel: value})
		if !ok {
			return saved, fmt.Errorf("rows are not ordered by timestamp at %s", ts.Format(time.RFC3339))
		}
		batch = append(batch, flushed...)
		if err := save(false); err != nil {
			return saved, err
		}
	}
	if err := rows.Err(); err != nil {
		return saved, fmt.Errorf("reading rows: %w", err)
	}

	batch = append(batch, agg.Flush()...)
	if err := save(true); err != nil {
		return saved, err
	}
	return saved, nil
}

func fail(logger *slog.Logger, err error) {
	logger.Error("import failed", slog.Any("error", err))
	os.Exit(1)
}
