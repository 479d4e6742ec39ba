package forecast

import (
	"fmt"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/series"
)

// Profile is the mean panel input of a set of analog days, re-anchored onto
// one calendar day and keyed by minute.
type Profile struct {
	Day    days.Day
	values map[int64]float64
}

func (p Profile) At(t time.Time) float64 {
	return p.values[t.Truncate(time.Minute).Unix()]
}

func (p Profile) Len() int {
	return len(p.values)
}

func profile(logs []series.DayLog, day days.Day, loc *time.Location) (Profile, error) {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)

	for _, l := range logs {
		input := series.NewFrame(l.Time)
		input.Columns[series.PanelInput] = l.ColumnOrZero(series.PanelInput)

		moved, err := input.Reanchor(day, loc)
		if err != nil {
			return Profile{}, fmt.Errorf("analog %s: %w", l.Day, err)
		}
		values := moved.Columns[series.PanelInput]
		for i, t := range moved.Time {
			k := t.Truncate(time.Minute).Unix()
			sums[k] += values[i]
			counts[k]++
		}
	}

	p := Profile{Day: day, values: make(map[int64]float64, len(sums))}
	for k, sum := range sums {
		p.values[k] = sum / float64(counts[k])
	}
	return p, nil
}
