package forecast

import (
	"errors"
	"sync"
	"time"

	"github.com/icodeforyou/solarbank-forecast/convert"
	"github.com/icodeforyou/solarbank-forecast/days"
)

type ReportAnalog struct {
	Day       days.Day `json:"day"`
	Closeness float64  `json:"closeness"`
}

// Report is the outward form of a forecast for one view.
type Report struct {
	Day        days.Day       `json:"day"`
	CreatedAt  time.Time      `json:"createdAt"`
	Adapted    bool           `json:"adapted"`
	SlotStart  string         `json:"slotStart"`
	SlotStop   string         `json:"slotStop"`
	Analogs    []ReportAnalog `json:"analogs"`
	StartSoC   float64        `json:"startSoc"`
	FinalSoC   float64        `json:"finalSoc"`
	Trip       string         `json:"trip"`
	Relative   Table          `json:"relative"`
	Cumulative Table          `json:"cumulative"`
}

func (f *Forecast) Report(v View, bucket time.Duration) (Report, error) {
	rel, err := f.Partition.Relative(v, bucket)
	if err != nil {
		return Report{}, err
	}
	cum, err := f.Partition.Cumulative(v, bucket)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		Day:        f.Day,
		CreatedAt:  f.CreatedAt,
		Adapted:    f.Adapted,
		SlotStart:  f.Match.StartClock().String(),
		SlotStop:   f.Match.StopClock().String(),
		Analogs:    make([]ReportAnalog, len(f.Analogs)),
		StartSoC:   cum.StartSoC.ValueOrDefault(f.StartSoC),
		FinalSoC:   convert.RoundFloat64(f.FinalSoC, 4),
		Trip:       f.Trip.String(),
		Relative:   rel,
		Cumulative: cum,
	}
	for i, a := range f.Analogs {
		r.Analogs[i] = ReportAnalog{Day: a.Day, Closeness: convert.TwoDecimals(a.Closeness)}
	}
	return r, nil
}

var ErrNoForecast = errors.New("no forecast has been made yet")

// Latest keeps the outcome of the most recent run. A failed run replaces the
// failure but keeps the last good forecast.
type Latest struct {
	mu       sync.RWMutex
	forecast *Forecast
	failure  error
}

func (l *Latest) Set(f *Forecast, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.failure = err
		return
	}
	l.forecast = f
	l.failure = nil
}

// Get returns the last good forecast and the failure of the latest run, if it
// failed.
func (l *Latest) Get() (*Forecast, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.forecast == nil && l.failure == nil {
		return nil, ErrNoForecast
	}
	return l.forecast, l.failure
}
