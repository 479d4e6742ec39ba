package weather

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
)

// Store persists weather of closed days.
type Store interface {
	GetCloudCover(day days.Day) ([]Hour, bool, error)
	SaveCloudCover(day days.Day, hours []Hour) error
	GetDaylight(day days.Day) (float64, bool, error)
	SaveDaylight(day days.Day, minutes float64) error
}

// Stored reads closed days from the store before asking the source. Days that
// are not over yet always go to the source since their forecast may change.
type Stored struct {
	logger *slog.Logger
	store  Store
	source Source
	now    func() time.Time
}

func NewStored(logger *slog.Logger, store Store, source Source) *Stored {
	return &Stored{logger: logger, store: store, source: source, now: time.Now}
}

func (s *Stored) HourlyCloudCover(ctx context.Context, day days.Day, loc Location) ([]Hour, error) {
	closed := day.IsClosed(s.now().In(loc.TZ))
	if closed {
		hours, ok, err := s.store.GetCloudCover(day)
		if err != nil {
			s.logger.Warn("failed to read stored cloud cover", slog.String("day", day.String()), slog.Any("error", err))
		} else if ok {
			return hours, nil
		}
	}

	hours, err := s.source.HourlyCloudCover(ctx, day, loc)
	if err != nil {
		return nil, err
	}

	if closed {
		if err := s.store.SaveCloudCover(day, hours); err != nil {
			s.logger.Warn("failed to store cloud cover", slog.String("day", day.String()), slog.Any("error", err))
		}
	}
	return hours, nil
}

func (s *Stored) DaylightMinutes(ctx context.Context, day days.Day, loc Location) (float64, error) {
	if minutes, ok, err := s.store.GetDaylight(day); err != nil {
		s.logger.Warn("failed to read stored daylight", slog.String("day", day.String()), slog.Any("error", err))
	} else if ok {
		return minutes, nil
	}

	minutes, err := s.source.DaylightMinutes(ctx, day, loc)
	if err != nil {
		return 0, err
	}

	if err := s.store.SaveDaylight(day, minutes); err != nil {
		s.logger.Warn("failed to store daylight", slog.String("day", day.String()), slog.Any("error", err))
	}
	return minutes, nil
}
