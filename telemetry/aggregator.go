package telemetry

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/series"
)

// Aggregator reduces readings to one mean value per channel and minute.
type Aggregator struct {
	mu       sync.Mutex
	size     int
	minute   time.Time
	averages map[series.Channel]*MovingAverage
}

// NewAggregator keeps at most size readings per channel and minute, older
// readings of the same minute fall out of the mean.
func NewAggregator(size int) *Aggregator {
	return &Aggregator{size: max(size, 1), averages: make(map[series.Channel]*MovingAverage)}
}

// Add records the readings at t. When t belongs to a later minute than the
// pending one, the pending minute is returned as samples. Readings older than
// the pending minute are dropped and reported as not accepted.
func (a *Aggregator) Add(t time.Time, values map[series.Channel]float64) (flushed []database.Sample, accepted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	minute := t.Truncate(time.Minute)
	switch {
	case a.minute.IsZero():
		a.minute = minute
	case minute.Before(a.minute):
		return nil, false
	case minute.After(a.minute):
		flushed = a.flush()
		a.minute = minute
	}

	for c, v := range values {
		if c == "" || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		ma, ok := a.averages[c]
		if !ok {
			ma = NewMovingAverage(a.size)
			a.averages[c] = ma
		}
		ma.Add(v)
	}

	return flushed, true
}

// Flush returns the pending minute and starts over.
func (a *Aggregator) Flush() []database.Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	samples := a.flush()
	a.minute = time.Time{}
	return samples
}

func (a *Aggregator) flush() []database.Sample {
	var samples []database.Sample
	for c, ma := range a.averages {
		if ma.Count() == 0 {
			continue
		}
		samples = append(samples, database.Sample{Time: a.minute, Channel: c, Value: ma.Avg()})
		ma.Reset()
	}
	slices.SortFunc(samples, func(x, y database.Sample) int {
		if x.Channel < y.Channel {
			return -1
		}
		if x.Channel > y.Channel {
			return 1
		}
		return 0
	})
	return samples
}
