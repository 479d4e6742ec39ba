package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
)

var ErrNotAvailable = errors.New("weather not available")

type Location struct {
	Latitude  float64
	Longitude float64
	TZ        *time.Location
}

// Hour is the cloud cover of one local hour, in percent of the sky (0-100).
type Hour struct {
	Start      time.Time
	CloudCover float64
}

// Source supplies per-day weather signals for a location.
type Source interface {
	HourlyCloudCover(ctx context.Context, day days.Day, loc Location) ([]Hour, error)
	DaylightMinutes(ctx context.Context, day days.Day, loc Location) (float64, error)
}

// OfDay keeps the hours starting within day, ordered by time.
func OfDay(hours []Hour, day days.Day, tz *time.Location) []Hour {
	from, to := day.Midnight(tz), day.End(tz)
	result := make([]Hour, 0, 25)
	for _, h := range hours {
		if !h.Start.Before(from) && h.Start.Before(to) {
			result = append(result, h)
		}
	}
	slices.SortFunc(result, func(a, b Hour) int { return a.Start.Compare(b.Start) })
	return slices.CompactFunc(result, func(a, b Hour) bool { return a.Start.Equal(b.Start) })
}

// Chain asks every source in order and returns the first successful answer.
type Chain struct {
	logger  *slog.Logger
	sources []Source
}

func NewChain(logger *slog.Logger, sources ...Source) *Chain {
	return &Chain{logger: logger, sources: sources}
}

func (c *Chain) HourlyCloudCover(ctx context.Context, day days.Day, loc Location) ([]Hour, error) {
	var errs []error
	for i, s := range c.sources {
		hours, err := s.HourlyCloudCover(ctx, day, loc)
		if err == nil && len(hours) > 0 {
			return hours, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: no hours for %s", ErrNotAvailable, day)
		}
		c.logger.Debug("weather source failed, trying next",
			slog.Int("source", i), slog.String("day", day.String()), slog.Any("error", err))
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrNotAvailable}, errs...)...)
}

func (c *Chain) DaylightMinutes(ctx context.Context, day days.Day, loc Location) (float64, error) {
	var errs []error
	for i, s := range c.sources {
		minutes, err := s.DaylightMinutes(ctx, day, loc)
		if err == nil {
			return minutes, nil
		}
		c.logger.Debug("daylight source failed, trying next",
			slog.Int("source", i), slog.String("day", day.String()), slog.Any("error", err))
		errs = append(errs, err)
	}
	return 0, errors.Join(append([]error{ErrNotAvailable}, errs...)...)
}
