package forecast

import (
	"fmt"
	"time"

	"github.com/icodeforyou/solarbank-forecast/convert"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
)

const labelLayout = "01-02 15:04"

type Row struct {
	Label     string                     `json:"label"`
	Start     time.Time                  `json:"start"`
	Stop      time.Time                  `json:"stop"`
	Simulated bool                       `json:"simulated"`
	Values    map[series.Channel]float64 `json:"values"`
}

// Table is either mean power per row (W) or accumulated energy up to and
// including each row (Wh).
type Table struct {
	View     View             `json:"view"`
	Kind     string           `json:"kind"`
	Channels []series.Channel `json:"channels"`
	Rows     []Row            `json:"rows"`
	// State of charge at the first sample of the view, cumulative tables only
	StartSoC maybe.Maybe[float64] `json:"-"`
}

const (
	KindRelative   = "relative"
	KindCumulative = "cumulative"
)

type segment struct {
	label     string
	simulated bool
	frame     series.Frame
}

// segments are the phases of the view, or fixed wall clock buckets when bucket > 0.
func (p Partition) segments(v View, bucket time.Duration) []segment {
	phases := p.View(v)
	if bucket <= 0 {
		result := make([]segment, len(phases))
		for i, ph := range phases {
			result[i] = segment{label: string(ph.Name), simulated: ph.Name.Simulated(), frame: ph.Frame}
		}
		return result
	}

	var result []segment
	for _, ph := range phases {
		for _, b := range ph.Frame.Buckets(p.Loc, bucket) {
			result = append(result, segment{
				label:     b.First().In(p.Loc).Format(labelLayout),
				simulated: ph.Name.Simulated(),
				frame:     b,
			})
		}
	}
	return result
}

// Relative returns the mean power per channel of every phase or bucket.
func (p Partition) Relative(v View, bucket time.Duration) (Table, error) {
	return p.table(v, bucket, KindRelative)
}

// Cumulative returns the energy per channel accumulated over the rows in
// chronological order.
func (p Partition) Cumulative(v View, bucket time.Duration) (Table, error) {
	return p.table(v, bucket, KindCumulative)
}

func (p Partition) table(v View, bucket time.Duration, kind string) (Table, error) {
	whole, err := p.Frame(v)
	if err != nil {
		return Table{}, err
	}
	if whole.IsEmpty() {
		return Table{}, fmt.Errorf("%s view of %s has no samples", v, p.Day)
	}

	segments := p.segments(v, bucket)

	channels := whole.Channels()
	interval := whole.Interval()
	t := Table{View: v, Kind: kind, Channels: channels, Rows: make([]Row, 0, len(segments))}
	running := make(map[series.Channel]float64, len(channels))

	for _, s := range segments {
		row := Row{
			Label:     s.label,
			Start:     s.frame.First(),
			Stop:      s.frame.Last().Add(interval),
			Simulated: s.simulated,
			Values:    make(map[series.Channel]float64, len(channels)),
		}
		for _, c := range channels {
			switch kind {
			case KindCumulative:
				if c == series.StateOfCharge {
					last, _ := s.frame.LastValue(c)
					row.Values[c] = convert.TwoDecimals(last)
					continue
				}
				running[c] += energy(s.frame, c, interval)
				row.Values[c] = convert.TwoDecimals(running[c])
			default:
				row.Values[c] = convert.TwoDecimals(s.frame.Mean(c))
			}
		}
		t.Rows = append(t.Rows, row)
	}

	if kind == KindCumulative {
		if soc, ok := whole.Column(series.StateOfCharge).Get(); ok && len(soc) > 0 {
			t.StartSoC = maybe.Some(soc[0])
		}
	}

	return t, nil
}

// energy integrates with the interval of the whole view, a bucket with a single
// sample still holds one interval worth of energy.
func energy(f series.Frame, c series.Channel, interval time.Duration) float64 {
	values := f.ColumnOrZero(c)
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum * interval.Hours()
}
