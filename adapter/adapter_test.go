package adapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSource struct {
	mu       sync.Mutex
	cover    map[days.Day]float64
	daylight map[days.Day]float64
	failing  days.Day
	tz       *time.Location
}

func (f *fakeSource) HourlyCloudCover(_ context.Context, day days.Day, _ weather.Location) ([]weather.Hour, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if day == f.failing {
		return nil, errors.New("service down")
	}
	var hours []weather.Hour
	for _, h := range day.Hours(f.tz) {
		hours = append(hours, weather.Hour{Start: h, CloudCover: f.cover[day]})
	}
	return hours, nil
}

func (f *fakeSource) DaylightMinutes(_ context.Context, day days.Day, _ weather.Location) (float64, error) {
	if day == f.failing {
		return 0, errors.New("service down")
	}
	return f.daylight[day], nil
}

func location(tz *time.Location) weather.Location {
	return weather.Location{Latitude: 52.5, Longitude: 13.4, TZ: tz}
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 1.0, Ratio(40, 40, 1), 1e-9)
	assert.InDelta(t, 81.0/21.0, Ratio(20, 80, 1), 1e-9)
	assert.InDelta(t, 1.0/101.0, Ratio(100, 0, 1), 1e-9)
	assert.InDelta(t, 1.0/101.0, Ratio(130, -5, 1), 1e-9, "cloud cover is clamped to percent")
}

func TestRatioIsPositive(t *testing.T) {
	for target := 0.0; target <= 100; target += 12.5 {
		for past := 0.0; past <= 100; past += 12.5 {
			assert.Greater(t, Ratio(target, past, DefaultSmoothing), 0.0)
		}
	}
}

func TestSunDurationRatio(t *testing.T) {
	assert.InDelta(t, 1.5, SunDurationRatio(1030, 1000), 1e-9)
	assert.InDelta(t, 1.0, SunDurationRatio(900, 900), 1e-9)
}

func TestHourly(t *testing.T) {
	src := &fakeSource{
		tz:    time.UTC,
		cover: map[days.Day]float64{"250615": 20, "240615": 70, "240616": 90},
	}
	e := New(discard, src, location(time.UTC), 1)

	s, err := e.Hourly(context.Background(), []days.Day{"250615", "240615", "240616"})
	require.NoError(t, err)
	require.Equal(t, 23, s.Len(), "last hour is dropped")

	want := Ratio(20, 80, 1)
	for i, r := range s.Ratios {
		assert.InDelta(t, want, r, 1e-9, "hour %d", i)
	}
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), s.Hours[0])

	assert.InDelta(t, want, s.At(time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)), 1e-9)
	assert.Equal(t, 1.0, s.At(time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)))
	assert.InDelta(t, want, s.Clock(days.NewClock(10, 30, 0)), 1e-9)
}

func TestHourlyAlignsByHourIndexAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	src := &fakeSource{
		tz:    berlin,
		cover: map[days.Day]float64{"250330": 0, "240401": 100},
	}
	e := New(discard, src, location(berlin), 1)

	s, err := e.Hourly(context.Background(), []days.Day{"250330", "240401"})
	require.NoError(t, err)
	assert.Equal(t, 22, s.Len())
	for _, r := range s.Ratios {
		assert.InDelta(t, 101.0, r, 1e-9)
	}
}

func TestHourlyFailsWhenAnyDayFails(t *testing.T) {
	src := &fakeSource{
		tz:      time.UTC,
		cover:   map[days.Day]float64{"250615": 20, "240615": 70},
		failing: "240616",
	}
	e := New(discard, src, location(time.UTC), 1)

	_, err := e.Hourly(context.Background(), []days.Day{"250615", "240615", "240616"})
	assert.ErrorIs(t, err, ErrWeatherUnavailable)
}

func TestHourlyNeedsAnalogs(t *testing.T) {
	e := New(discard, &fakeSource{tz: time.UTC}, location(time.UTC), 1)
	_, err := e.Hourly(context.Background(), []days.Day{"250615"})
	assert.Error(t, err)
}

func TestSunDuration(t *testing.T) {
	src := &fakeSource{
		tz:       time.UTC,
		daylight: map[days.Day]float64{"250615": 1110, "240615": 1080},
	}
	e := New(discard, src, location(time.UTC), 1)

	k, err := e.SunDuration(context.Background(), "250615", "240615")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, k, 1e-9)

	src.failing = "240615"
	_, err = e.SunDuration(context.Background(), "250615", "240615")
	assert.ErrorIs(t, err, ErrWeatherUnavailable)
}

func TestNeutral(t *testing.T) {
	s := Neutral("250615")
	assert.Equal(t, 1.0, s.At(time.Now()))
	assert.Zero(t, s.Len())
}
