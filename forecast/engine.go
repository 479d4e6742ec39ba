package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/icodeforyou/solarbank-forecast/adapter"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/matcher"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/simulator"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
	"golang.org/x/sync/errgroup"
)

// LogProvider returns None for days it has no readable log of.
type LogProvider interface {
	GetDay(ctx context.Context, day days.Day) maybe.Maybe[series.DayLog]
	GetWindow(ctx context.Context, radius int, ref days.Day) ([]days.Day, error)
}

type Adapters interface {
	Hourly(ctx context.Context, dayIDs []days.Day) (adapter.Series, error)
}

type Settings struct {
	WindowRadius   int
	Analogs        int
	Channels       []matcher.ChannelSpec
	Start          maybe.Maybe[days.Clock]
	Stop           maybe.Maybe[days.Clock]
	ReferenceHour  days.Clock
	AllowUnadapted bool
	DefaultSoC     float64
	Simulator      simulator.Params
}

func DefaultSettings() Settings {
	return Settings{
		WindowRadius:  14,
		Analogs:       3,
		Channels:      []matcher.ChannelSpec{{Channel: series.PanelInput}},
		ReferenceHour: days.NewClock(12, 0, 0),
		DefaultSoC:    0.5,
		Simulator:     simulator.DefaultParams(),
	}
}

type Forecast struct {
	Day             days.Day
	CreatedAt       time.Time
	Adapted         bool
	Match           matcher.Result
	Analogs         []matcher.Candidate
	TodayAdapter    adapter.Series
	TomorrowAdapter adapter.Series
	Partition       Partition
	StartSoC        float64
	FinalSoC        float64
	Trip            simulator.TripState
}

type Engine struct {
	logger   *slog.Logger
	logs     LogProvider
	adapters Adapters
	loc      *time.Location

	mu       sync.RWMutex
	settings Settings
}

func NewEngine(logger *slog.Logger, logs LogProvider, adapters Adapters, loc *time.Location, settings Settings) *Engine {
	return &Engine{logger: logger, logs: logs, adapters: adapters, loc: loc, settings: settings}
}

func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// SetSettings applies to the next run.
func (e *Engine) SetSettings(s Settings) {
	e.mu.Lock()
	e.settings = s
	e.mu.Unlock()
}

// Run forecasts the rest of the day of now and the following day. The error
// is always a *Failure.
func (e *Engine) Run(ctx context.Context, now time.Time) (*Forecast, error) {
	f, err := e.run(ctx, now)
	var failure *Failure
	if errors.As(err, &failure) {
		e.logger.Warn("no forecast",
			slog.String("day", days.FromTime(now.In(e.loc)).String()),
			slog.String("stage", string(failure.Stage)),
			slog.String("reason", failure.Reason))
	}
	return f, err
}

func (e *Engine) run(ctx context.Context, now time.Time) (*Forecast, error) {
	s := e.Settings()
	now = now.In(e.loc)
	today := days.FromTime(now)
	tomorrow := today.Add(1)

	window, err := e.logs.GetWindow(ctx, s.WindowRadius, today)
	if err != nil {
		return nil, fail(StageLogs, fmt.Errorf("window around %s: %w", today, err))
	}
	logs, err := FetchLogs(ctx, e.logger, e.logs, window)
	if err != nil {
		return nil, fail(StageLogs, err)
	}

	history := make([]series.DayLog, 0, len(logs))
	var current maybe.Maybe[series.DayLog]
	for _, l := range logs {
		if l.Day == today {
			l.Frame = l.Through(today.Midnight(e.loc), now)
			current = maybe.Some(l)
		}
		history = append(history, l)
	}
	todayLog, ok := current.Get()
	if !ok {
		return nil, fail(StageLogs, fmt.Errorf("%w: no log for %s", matcher.ErrNoRadiation, today))
	}

	req := matcher.Request{Target: today, Start: s.Start, Stop: s.Stop, Channels: s.Channels}
	nowClock := days.ClockOf(now)
	if stop, ok := s.Stop.Get(); !ok || stop > nowClock {
		req.Stop = maybe.Some(nowClock)
	}
	match, err := matcher.New(e.logger, e.loc).Match(history, req)
	if err != nil {
		return nil, fail(StageMatch, err)
	}
	analogs := match.Analogs(s.Analogs)

	e.logger.Info("closest days found",
		slog.String("day", today.String()),
		slog.String("slot", match.StartClock().String()+"-"+match.StopClock().String()),
		slog.Any("analogs", analogDays(analogs)))

	todayIDs := append([]days.Day{today}, analogDays(analogs)...)
	tomorrowIDs := append([]days.Day{tomorrow}, followingDays(analogs, today)...)

	f := &Forecast{Day: today, CreatedAt: now, Adapted: true, Match: match, Analogs: analogs}
	if err := e.adapt(ctx, s, f, todayIDs, tomorrowIDs); err != nil {
		return nil, err
	}

	byDay := make(map[days.Day]series.DayLog, len(logs))
	for _, l := range logs {
		byDay[l.Day] = l
	}
	nextLogs, err := FetchLogs(ctx, e.logger, e.logs, missing(tomorrowIDs[1:], byDay))
	if err != nil {
		return nil, fail(StageLogs, err)
	}
	for _, l := range nextLogs {
		byDay[l.Day] = l
	}

	todayProfile, err := profile(pick(byDay, todayIDs[1:]), today, e.loc)
	if err != nil {
		return nil, fail(StageAssemble, err)
	}
	tomorrowSources := pick(byDay, tomorrowIDs[1:])
	if len(tomorrowSources) == 0 {
		e.logger.Debug("no logs for the days after the analogs, reusing the analogs for tomorrow")
		tomorrowSources = pick(byDay, todayIDs[1:])
	}
	tomorrowProfile, err := profile(tomorrowSources, tomorrow, e.loc)
	if err != nil {
		return nil, fail(StageAssemble, err)
	}

	f.StartSoC = s.DefaultSoC
	if soc, ok := todayLog.LastValue(series.StateOfCharge); ok {
		f.StartSoC = soc
	} else {
		e.logger.Warn("no state of charge recorded today, using default",
			slog.Float64("soc", s.DefaultSoC), slog.Any("error", series.ErrMissingChannel))
	}

	from := today.Midnight(e.loc)
	if !todayLog.IsEmpty() {
		from = todayLog.Last().Add(todayLog.Interval())
	}
	todaySim, err := simulate(minutes(from, today.End(e.loc)), todayProfile, f.TodayAdapter, f.StartSoC, s.Simulator)
	if err != nil {
		return nil, fail(StageSimulate, err)
	}
	tomorrowSim, err := simulate(minutes(tomorrow.Midnight(e.loc), tomorrow.End(e.loc)), tomorrowProfile, f.TomorrowAdapter, todaySim.FinalSoC, s.Simulator)
	if err != nil {
		return nil, fail(StageSimulate, err)
	}
	f.FinalSoC = tomorrowSim.FinalSoC
	f.Trip = todaySim.Trip | tomorrowSim.Trip

	part, err := Assemble(Pieces{
		Day:            today,
		Now:            now,
		SlotStart:      match.Start,
		SlotStop:       match.Stop,
		Real:           todayLog.Frame,
		TodaySimulated: todaySim.Frame(),
		Tomorrow:       tomorrowSim.Frame(),
		ReferenceHour:  s.ReferenceHour,
	}, e.loc)
	if err != nil {
		return nil, fail(StageAssemble, err)
	}
	f.Partition = part

	e.logger.Info("forecast done",
		slog.String("day", today.String()),
		slog.Bool("adapted", f.Adapted),
		slog.Float64("final_soc", f.FinalSoC),
		slog.String("trip", f.Trip.String()))

	return f, nil
}

// adapt computes both adapters concurrently. Without weather the forecast
// fails unless unadapted forecasts are allowed.
func (e *Engine) adapt(ctx context.Context, s Settings, f *Forecast, todayIDs, tomorrowIDs []days.Day) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		f.TodayAdapter, err = e.adapters.Hourly(gctx, todayIDs)
		return err
	})
	g.Go(func() (err error) {
		f.TomorrowAdapter, err = e.adapters.Hourly(gctx, tomorrowIDs)
		return err
	})
	err := g.Wait()
	if err == nil {
		return nil
	}

	if !s.AllowUnadapted || !errors.Is(err, adapter.ErrWeatherUnavailable) {
		return fail(StageAdapter, err)
	}

	e.logger.Warn("weather unavailable, forecasting without adapter", slog.Any("error", err))
	f.Adapted = false
	f.TodayAdapter = adapter.Neutral(todayIDs[0])
	f.TomorrowAdapter = adapter.Neutral(tomorrowIDs[0])
	return nil
}

// FetchLogs reads all days concurrently. Absent days are left out, the order
// of dayIDs is kept.
func FetchLogs(ctx context.Context, logger *slog.Logger, provider LogProvider, dayIDs []days.Day) ([]series.DayLog, error) {
	results := make([]maybe.Maybe[series.DayLog], len(dayIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, day := range dayIDs {
		g.Go(func() error {
			results[i] = provider.GetDay(gctx, day)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logs := make([]series.DayLog, 0, len(results))
	for i, r := range results {
		if l, ok := r.Get(); ok {
			logs = append(logs, l)
		} else {
			logger.Debug("no log for day", slog.String("day", dayIDs[i].String()))
		}
	}
	return logs, nil
}

func analogDays(cs []matcher.Candidate) []days.Day {
	result := make([]days.Day, len(cs))
	for i, c := range cs {
		result[i] = c.Day
	}
	return result
}

// followingDays returns the day after each analog. An analog whose next day
// is not closed yet stands in for its own next day.
func followingDays(analogs []matcher.Candidate, today days.Day) []days.Day {
	result := make([]days.Day, len(analogs))
	for i, a := range analogs {
		next := a.Day.Add(1)
		if !next.Before(today) {
			next = a.Day
		}
		result[i] = next
	}
	return result
}

func missing(dayIDs []days.Day, have map[days.Day]series.DayLog) []days.Day {
	var result []days.Day
	for _, d := range dayIDs {
		if _, ok := have[d]; !ok {
			result = append(result, d)
		}
	}
	return result
}

func pick(byDay map[days.Day]series.DayLog, dayIDs []days.Day) []series.DayLog {
	var result []series.DayLog
	for _, d := range dayIDs {
		if l, ok := byDay[d]; ok {
			result = append(result, l)
		}
	}
	return result
}

// minutes returns every full minute in [from, to).
func minutes(from, to time.Time) []time.Time {
	from = from.Truncate(time.Minute)
	var ts []time.Time
	for t := from; t.Before(to); t = t.Add(time.Minute) {
		ts = append(ts, t)
	}
	return ts
}

func simulate(times []time.Time, p Profile, a adapter.Series, soc float64, params simulator.Params) (simulator.Result, error) {
	input := make([]float64, len(times))
	for i, t := range times {
		input[i] = p.At(t) * a.At(t)
	}
	return simulator.Run(times, input, soc, params)
}
