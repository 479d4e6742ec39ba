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

	"github.com/icodeforyou/solarbank-forecast/cache"
	"github.com/icodeforyou/solarbank-forecast/config"
	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/forecast"
	"github.com/icodeforyou/solarbank-forecast/matcher"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
	"github.com/lmittmann/tint"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dayStr := flag.String("day", "", "target day YYMMDD, default today")
	startStr := flag.String("start", "", "slot start HH:MM")
	stopStr := flag.String("stop", "", "slot stop HH:MM")
	channels := flag.String("channels", "", "comma separated channels, e.g. SBPI,SBPB-")
	n := flag.Int("n", 10, "number of days to print")
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
	settings, err := cnfg.ForecastSettings()
	if err != nil {
		fail(logger, err)
	}

	req := matcher.Request{Target: days.Today(tz), Start: settings.Start, Stop: settings.Stop, Channels: settings.Channels}
	if *dayStr != "" {
		if req.Target, err = days.Parse(*dayStr); err != nil {
			fail(logger, err)
		}
	}
	if req.Start, err = clockFlag(*startStr, req.Start); err != nil {
		fail(logger, err)
	}
	if req.Stop, err = clockFlag(*stopStr, req.Stop); err != nil {
		fail(logger, err)
	}
	if *channels != "" {
		req.Channels = nil
		for _, str := range strings.Split(*channels, ",") {
			spec, err := matcher.ParseChannelSpec(str)
			if err != nil {
				fail(logger, err)
			}
			req.Channels = append(req.Channels, spec)
		}
	}

	ctx := context.Background()
	db, err := database.New(ctx, cnfg.Database.Path, tz)
	if err != nil {
		fail(logger, err)
	}
	defer db.Close()
	db.SetLogger(logger.With("module", "database"))

	logs := database.NewDayLogs(logger, db, cache.Noop[series.DayLog]{})
	window, err := logs.GetWindow(ctx, settings.WindowRadius, req.Target)
	if err != nil {
		fail(logger, err)
	}
	history, err := forecast.FetchLogs(ctx, logger, logs, window)
	if err != nil {
		fail(logger, err)
	}

	result, err := matcher.New(logger, tz).Match(history, req)
	if err != nil {
		fail(logger, err)
	}

	fmt.Printf("Closest days to %s, slot %s-%s, %d candidates\n\n", req.Target, result.StartClock(), result.StopClock(), len(result.Ranked)-1)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"rank", "day", "closeness"}
	for _, c := range result.Channels {
		header = append(header, c.String()+" (Wh)")
	}
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")
	for i, c := range result.Ranked[:min(*n+1, len(result.Ranked))] {
		cells := []string{fmt.Sprint(i), c.Day.String(), fmt.Sprintf("%.2f", c.Closeness)}
		for _, v := range c.Integrals {
			cells = append(cells, fmt.Sprintf("%.2f", v))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
	}
	w.Flush()
}

func clockFlag(str string, def maybe.Maybe[days.Clock]) (maybe.Maybe[days.Clock], error) {
	if str == "" {
		return def, nil
	}
	c, err := days.ParseClock(str)
	if err != nil {
		return def, err
	}
	return maybe.Some(c), nil
}

func fail(logger *slog.Logger, err error) {
	logger.Error("closest days failed", slog.Any("error", err))
	os.Exit(1)
}
