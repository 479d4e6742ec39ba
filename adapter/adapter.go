package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/solarbank-forecast/convert"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/weather"
	"golang.org/x/sync/errgroup"
)

var ErrWeatherUnavailable = errors.New("weather unavailable")

const DefaultSmoothing = 1.0

// Series holds one multiplicative factor per local hour of the target day.
// The last hour of the day is not part of it.
type Series struct {
	Day    days.Day
	Hours  []time.Time
	Ratios []float64
}

// At returns the factor for the hour containing t, 1 outside the series.
func (s Series) At(t time.Time) float64 {
	for i, h := range s.Hours {
		if !t.Before(h) && t.Before(h.Add(time.Hour)) {
			return s.Ratios[i]
		}
	}
	return 1
}

// Clock returns the factor for the wall clock hour of c.
func (s Series) Clock(c days.Clock) float64 {
	for i, h := range s.Hours {
		if h.Hour() == c.Hour() {
			return s.Ratios[i]
		}
	}
	return 1
}

func (s Series) Len() int {
	return len(s.Ratios)
}

// Neutral is an adapter that does not change anything.
func Neutral(day days.Day) Series {
	return Series{Day: day}
}

// Ratio of clear sky between the target and the past, with k keeping both
// sides away from zero.
func Ratio(targetCloud, pastCloud, k float64) float64 {
	targetCloud = min(max(targetCloud, 0), 100)
	pastCloud = min(max(pastCloud, 0), 100)
	return (100 - targetCloud + k) / (100 - pastCloud + k)
}

// SunDurationRatio is a whole day correction from the daylight minutes of two days.
func SunDurationRatio(target, other float64) float64 {
	return 1 + (target-other)/60
}

type Engine struct {
	logger    *slog.Logger
	source    weather.Source
	location  weather.Location
	smoothing float64
}

func New(logger *slog.Logger, source weather.Source, location weather.Location, smoothing float64) *Engine {
	if smoothing <= 0 {
		smoothing = DefaultSmoothing
	}
	return &Engine{logger: logger, source: source, location: location, smoothing: smoothing}
}

// Hourly computes the adapter for dayIDs[0] against the average of the
// remaining days. Hours are aligned by their index within each day.
func (e *Engine) Hourly(ctx context.Context, dayIDs []days.Day) (Series, error) {
	if len(dayIDs) < 2 {
		return Series{}, fmt.Errorf("adapter needs a target and at least one analog day, got %d days", len(dayIDs))
	}

	covers, err := e.fetch(ctx, dayIDs)
	if err != nil {
		return Series{}, err
	}

	target := covers[0]
	if len(target) < 2 {
		return Series{}, fmt.Errorf("%w: only %d hours for %s", ErrWeatherUnavailable, len(target), dayIDs[0])
	}

	n := len(target) - 1
	s := Series{
		Day:    dayIDs[0],
		Hours:  make([]time.Time, n),
		Ratios: make([]float64, n),
	}
	for i := range n {
		past, ok := averageAt(covers[1:], i)
		s.Hours[i] = target[i].Start
		if !ok {
			s.Ratios[i] = 1
			continue
		}
		s.Ratios[i] = Ratio(target[i].CloudCover, past, e.smoothing)
	}

	e.logger.Debug("adapter computed",
		slog.String("day", s.Day.String()),
		slog.Int("analogs", len(dayIDs)-1),
		slog.Any("ratios", roundAll(s.Ratios)))

	return s, nil
}

// SunDuration computes the single daylight based correction between two days.
func (e *Engine) SunDuration(ctx context.Context, target, other days.Day) (float64, error) {
	var t0, t1 float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t0, err = e.source.DaylightMinutes(gctx, target, e.location)
		return err
	})
	g.Go(func() (err error) {
		t1, err = e.source.DaylightMinutes(gctx, other, e.location)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}
	return SunDurationRatio(t0, t1), nil
}

// fetch returns the cloud cover of every day, positionally aligned with dayIDs.
func (e *Engine) fetch(ctx context.Context, dayIDs []days.Day) ([][]weather.Hour, error) {
	result := make([][]weather.Hour, len(dayIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, day := range dayIDs {
		g.Go(func() error {
			hours, err := e.source.HourlyCloudCover(gctx, day, e.location)
			if err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
			hours = weather.OfDay(hours, day, e.location.TZ)
			if len(hours) == 0 {
				return fmt.Errorf("%s: no hours", day)
			}
			result[i] = hours
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
	}
	return result, nil
}

func averageAt(covers [][]weather.Hour, i int) (float64, bool) {
	sum, n := 0.0, 0
	for _, c := range covers {
		if i < len(c) {
			sum += c[i].CloudCover
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func roundAll(values []float64) []float64 {
	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = convert.TwoDecimals(v)
	}
	return result
}
