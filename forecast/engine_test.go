package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/adapter"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/matcher"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeLogs struct {
	window []days.Day
	logs   map[days.Day]series.DayLog
}

func (f *fakeLogs) GetDay(_ context.Context, day days.Day) maybe.Maybe[series.DayLog] {
	if l, ok := f.logs[day]; ok {
		return maybe.Some(l)
	}
	return maybe.None[series.DayLog]()
}

func (f *fakeLogs) GetWindow(_ context.Context, _ int, _ days.Day) ([]days.Day, error) {
	return f.window, nil
}

type fakeAdapters struct {
	mu       sync.Mutex
	ratio    float64
	err      error
	requests [][]days.Day
}

func (f *fakeAdapters) Hourly(_ context.Context, dayIDs []days.Day) (adapter.Series, error) {
	f.mu.Lock()
	f.requests = append(f.requests, dayIDs)
	f.mu.Unlock()
	if f.err != nil {
		return adapter.Series{}, f.err
	}
	hours := dayIDs[0].Hours(time.UTC)
	s := adapter.Series{Day: dayIDs[0], Hours: hours[:len(hours)-1], Ratios: make([]float64, len(hours)-1)}
	for i := range s.Ratios {
		s.Ratios[i] = f.ratio
	}
	return s, nil
}

// sunnyDay has panel input between 06:00 and 17:59, up to the given clock.
func sunnyDay(day days.Day, input float64, soc float64, until days.Clock) series.DayLog {
	f := series.NewFrame(minutes(day.Midnight(time.UTC), day.At(time.UTC, until).Add(time.Minute)))
	sbpi := make([]float64, f.Len())
	sbsb := make([]float64, f.Len())
	for i, t := range f.Time {
		if t.Hour() >= 6 && t.Hour() < 18 {
			sbpi[i] = input
		}
		sbsb[i] = soc
	}
	f.Columns[series.PanelInput] = sbpi
	f.Columns[series.StateOfCharge] = sbsb
	return series.DayLog{Day: day, Frame: f}
}

func setup(todayInput float64) (*fakeLogs, time.Time) {
	endOfDay := days.NewClock(23, 59, 0)
	logs := &fakeLogs{
		window: []days.Day{"240614", "240615", "240616", "250615"},
		logs: map[days.Day]series.DayLog{
			"240614": sunnyDay("240614", 100, 0.3, endOfDay),
			"240615": sunnyDay("240615", 150, 0.3, endOfDay),
			"240616": sunnyDay("240616", 400, 0.3, endOfDay),
			"250615": sunnyDay("250615", todayInput, 0.6, days.NewClock(13, 0, 0)),
		},
	}
	return logs, time.Date(2025, 6, 15, 13, 0, 30, 0, time.UTC)
}

func settings() Settings {
	s := DefaultSettings()
	s.Analogs = 2
	return s
}

func TestRun(t *testing.T) {
	logs, now := setup(110)
	adapters := &fakeAdapters{ratio: 1}
	e := NewEngine(discard, logs, adapters, time.UTC, settings())

	f, err := e.Run(context.Background(), now)
	require.NoError(t, err)

	assert.True(t, f.Adapted)
	assert.Equal(t, days.Day("250615"), f.Day)
	require.Len(t, f.Analogs, 2)
	assert.Equal(t, days.Day("240614"), f.Analogs[0].Day)
	assert.Equal(t, days.Day("240615"), f.Analogs[1].Day)

	assert.Equal(t, time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC), f.Match.Start)
	assert.Equal(t, time.Date(2025, 6, 15, 13, 0, 0, 0, time.UTC), f.Match.Stop)

	require.Len(t, adapters.requests, 2)
	assert.ElementsMatch(t, [][]days.Day{
		{"250615", "240614", "240615"},
		{"250616", "240615", "240616"},
	}, adapters.requests)

	total, err := f.Partition.Frame(ViewTotal)
	require.NoError(t, err)
	assert.Equal(t, 2*24*60, total.Len())
	require.NoError(t, total.CheckMonotonic())

	assert.Equal(t, 0.6, f.StartSoC)
	assert.Greater(t, f.FinalSoC, f.StartSoC)

	sim, ok := f.Partition.Phase(TodaySimulated)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 15, 13, 1, 0, 0, time.UTC), sim.Frame.First())
	// mean of 100 W and 150 W
	assert.Equal(t, 125.0, sim.Frame.ColumnOrZero(series.PanelInput)[0])
	assert.Equal(t, -25.0, sim.Frame.ColumnOrZero(series.BatteryPower)[0])

	tomorrow, ok := f.Partition.Phase(TomorrowAfter)
	require.True(t, ok)
	// mean of the days after the analogs, 150 W and 400 W
	assert.Equal(t, 275.0, tomorrow.Frame.ColumnOrZero(series.PanelInput)[0])
}

func TestRunAppliesAdapter(t *testing.T) {
	logs, now := setup(110)
	e := NewEngine(discard, logs, &fakeAdapters{ratio: 2}, time.UTC, settings())

	f, err := e.Run(context.Background(), now)
	require.NoError(t, err)

	sim, _ := f.Partition.Phase(TodaySimulated)
	assert.Equal(t, 250.0, sim.Frame.ColumnOrZero(series.PanelInput)[0])
}

func TestRunWithoutWeather(t *testing.T) {
	logs, now := setup(110)
	adapters := &fakeAdapters{err: fmt.Errorf("%w: service down", adapter.ErrWeatherUnavailable)}

	e := NewEngine(discard, logs, adapters, time.UTC, settings())
	_, err := e.Run(context.Background(), now)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, StageAdapter, failure.Stage)
	assert.ErrorIs(t, err, adapter.ErrWeatherUnavailable)
	assert.NotEmpty(t, failure.Reason)

	s := settings()
	s.AllowUnadapted = true
	e.SetSettings(s)

	f, err := e.Run(context.Background(), now)
	require.NoError(t, err)
	assert.False(t, f.Adapted)
	sim, _ := f.Partition.Phase(TodaySimulated)
	assert.Equal(t, 125.0, sim.Frame.ColumnOrZero(series.PanelInput)[0])
}

func TestRunWithoutRadiation(t *testing.T) {
	logs, now := setup(0)
	e := NewEngine(discard, logs, &fakeAdapters{ratio: 1}, time.UTC, settings())

	_, err := e.Run(context.Background(), now)

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, StageMatch, failure.Stage)
	assert.Equal(t, "no radiation recorded today, no forecast possible", failure.Reason)
}

func TestRunWithoutTodayLog(t *testing.T) {
	logs, now := setup(110)
	delete(logs.logs, "250615")
	e := NewEngine(discard, logs, &fakeAdapters{ratio: 1}, time.UTC, settings())

	_, err := e.Run(context.Background(), now)
	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, StageLogs, failure.Stage)
}

func TestRunYesterdayAsAnalogKeepsItsProfileForTomorrow(t *testing.T) {
	logs := &fakeLogs{
		window: []days.Day{"250614", "250615"},
		logs: map[days.Day]series.DayLog{
			"250614": sunnyDay("250614", 110, 0.3, days.NewClock(23, 59, 0)),
			"250615": sunnyDay("250615", 110, 0.6, days.NewClock(13, 0, 0)),
		},
	}
	now := time.Date(2025, 6, 15, 13, 0, 30, 0, time.UTC)
	adapters := &fakeAdapters{ratio: 1}
	s := DefaultSettings()
	s.Analogs = 1
	e := NewEngine(discard, logs, adapters, time.UTC, s)

	f, err := e.Run(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, f.Analogs, 1)
	assert.Equal(t, days.Day("250614"), f.Analogs[0].Day)

	// the day after yesterday is today, still open, so yesterday stands in
	assert.ElementsMatch(t, [][]days.Day{
		{"250615", "250614"},
		{"250616", "250614"},
	}, adapters.requests)

	tomorrow, ok := f.Partition.Phase(TomorrowAfter)
	require.True(t, ok)
	at := time.Date(2025, 6, 16, 15, 0, 0, 0, time.UTC)
	afternoon := tomorrow.Frame.Range(at, at.Add(time.Minute))
	assert.Equal(t, []float64{110}, afternoon.ColumnOrZero(series.PanelInput))
}

func TestFollowingDays(t *testing.T) {
	analogs := []matcher.Candidate{{Day: "240614"}, {Day: "250614"}, {Day: "250613"}}
	assert.Equal(t, []days.Day{"240615", "250614", "250614"}, followingDays(analogs, "250615"))
}

type slowLogs struct {
	fakeLogs
	mu      sync.Mutex
	running int
	peak    int
}

func (s *slowLogs) GetDay(ctx context.Context, day days.Day) maybe.Maybe[series.DayLog] {
	s.mu.Lock()
	s.running++
	s.peak = max(s.peak, s.running)
	s.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	s.mu.Lock()
	s.running--
	s.mu.Unlock()
	return s.fakeLogs.GetDay(ctx, day)
}

func TestFetchLogsIsConcurrentAndKeepsOrder(t *testing.T) {
	base, _ := setup(110)
	logs := &slowLogs{fakeLogs: *base}

	got, err := FetchLogs(context.Background(), discard, logs, []days.Day{"240616", "240613", "240614", "240615"})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, days.Day("240616"), got[0].Day)
	assert.Equal(t, days.Day("240614"), got[1].Day)
	assert.Equal(t, days.Day("240615"), got[2].Day)
	assert.Greater(t, logs.peak, 1)
}
