package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/solarbank-forecast/cache"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
)

// DayLogs serves day logs from the sample store. Read errors are logged and
// reported as absent days.
type DayLogs struct {
	logger *slog.Logger
	db     *Database
	cache  cache.Days[series.DayLog]
	now    func() time.Time
}

func NewDayLogs(logger *slog.Logger, db *Database, c cache.Days[series.DayLog]) *DayLogs {
	if c == nil {
		c = cache.Noop[series.DayLog]{}
	}
	return &DayLogs{logger: logger, db: db, cache: c, now: time.Now}
}

func (p *DayLogs) GetDay(ctx context.Context, day days.Day) maybe.Maybe[series.DayLog] {
	closed := day.IsClosed(p.now().In(p.db.loc))
	l, ok, err := p.cache.GetOrLoad(day, closed, func() (series.DayLog, bool, error) {
		return p.db.GetDayLog(ctx, day)
	})
	if err != nil {
		p.logger.Warn("failed to read day log", slog.String("day", day.String()), slog.Any("error", err))
		return maybe.None[series.DayLog]()
	}
	if !ok {
		return maybe.None[series.DayLog]()
	}
	return maybe.Some(l)
}

// GetWindow returns the stored days within ±radius of ref's date in every
// stored year before ref, oldest first, and ref itself last.
func (p *DayLogs) GetWindow(ctx context.Context, radius int, ref days.Day) ([]days.Day, error) {
	first, ok, err := p.db.FirstDay(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []days.Day{ref}, nil
	}

	existing, err := p.db.ExistingDays(ctx, days.Window(ref, radius, first.Year()))
	if err != nil {
		return nil, err
	}
	return append(existing, ref), nil
}

// SaveSamples stores samples and drops cached logs of the days they touch, so
// late samples of a closed day are seen by the next read.
func (p *DayLogs) SaveSamples(ctx context.Context, samples []Sample) error {
	if err := p.db.SaveSamples(ctx, samples); err != nil {
		return err
	}
	seen := make(map[days.Day]bool)
	for _, s := range samples {
		day := days.FromTime(s.Time.In(p.db.loc))
		if !seen[day] {
			seen[day] = true
			p.cache.Forget(day)
		}
	}
	return nil
}
