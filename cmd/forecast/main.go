package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/icodeforyou/solarbank-forecast/adapter"
	"github.com/icodeforyou/solarbank-forecast/cache"
	"github.com/icodeforyou/solarbank-forecast/config"
	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/forecast"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/weather"
	"github.com/icodeforyou/solarbank-forecast/weather/providers"
	"github.com/lmittmann/tint"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	viewStr := flag.String("view", "total", "today, tomorrow or total")
	bucket := flag.Int("bucket", -1, "bucket size in minutes, 0 for one row per phase, default from config")
	atStr := flag.String("at", "", "forecast as of this time (RFC3339), default now")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(logger)

	cnfg, err := config.Load(*configPath)
	if err != nil {
		fail(logger, err)
	}
	view, err := forecast.ParseView(*viewStr)
	if err != nil {
		fail(logger, err)
	}
	loc, err := cnfg.Location.Weather()
	if err != nil {
		fail(logger, err)
	}
	settings, err := cnfg.ForecastSettings()
	if err != nil {
		fail(logger, err)
	}

	now := time.Now()
	if *atStr != "" {
		if now, err = time.Parse(time.RFC3339, *atStr); err != nil {
			fail(logger, err)
		}
	}

	ctx := context.Background()
	db, err := database.New(ctx, cnfg.Database.Path, loc.TZ)
	if err != nil {
		fail(logger, err)
	}
	defer db.Close()
	db.SetLogger(logger.With("module", "database"))

	source := weather.NewStored(logger, db, weather.NewChain(logger, providers.FromNames(logger, cnfg.Weather.GetProviders())...))
	engine := forecast.NewEngine(
		logger,
		database.NewDayLogs(logger, db, cache.Noop[series.DayLog]{}),
		adapter.New(logger, source, loc, cnfg.Adapter.GetSmoothing()),
		loc.TZ,
		settings)

	f, err := engine.Run(ctx, now)
	if err != nil {
		fail(logger, err)
	}

	size := cnfg.Forecast.GetBucket()
	if *bucket >= 0 {
		size = time.Duration(*bucket) * time.Minute
	}

	report, err := f.Report(view, size)
	if err != nil {
		fail(logger, err)
	}

	fmt.Printf("Forecast %s, slot %s-%s, adapted: %t\n", report.Day, report.SlotStart, report.SlotStop, report.Adapted)
	for _, a := range report.Analogs {
		fmt.Printf("  analog %s closeness %.2f\n", a.Day, a.Closeness)
	}
	fmt.Printf("State of charge %.2f -> %.2f, protection %s\n\n", report.StartSoC, report.FinalSoC, report.Trip)
	printTable(report.Relative)
	fmt.Println()
	printTable(report.Cumulative)
}

func printTable(t forecast.Table) {
	unit := "W"
	if t.Kind == forecast.KindCumulative {
		unit = "Wh"
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{fmt.Sprintf("%s (%s)", t.Kind, unit), "sim"}
	for _, c := range t.Channels {
		header = append(header, string(c))
	}
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")
	for _, row := range t.Rows {
		cells := []string{row.Label, simMark(row.Simulated)}
		for _, c := range t.Channels {
			cells = append(cells, fmt.Sprintf("%.2f", row.Values[c]))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
	}
	w.Flush()
}

func simMark(simulated bool) string {
	if simulated {
		return "*"
	}
	return ""
}

func fail(logger *slog.Logger, err error) {
	logger.Error("forecast failed", slog.Any("error", err))
	os.Exit(1)
}
