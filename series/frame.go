package series

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
)

var (
	ErrNonMonotonic   = errors.New("timestamps are not strictly increasing")
	ErrMissingChannel = errors.New("channel missing")
)

type Channel string

const (
	Grid          Channel = "SMP"  // Smartmeter grid power, positive when importing
	PanelInput    Channel = "SBPI" // Solarbank panel input
	BatteryOutput Channel = "SBPO" // Solarbank output towards the inverter
	BatteryPower  Channel = "SBPB" // Charge (negative) or discharge (positive) power
	StateOfCharge Channel = "SBSB" // Fraction of capacity, 0..1
	Inverter      Channel = "INV"
	plugPrefix            = "PLUG"
)

// IsOptional tells if a channel may legitimately be missing from a day log.
func (c Channel) IsOptional() bool {
	return c == Inverter || strings.HasPrefix(string(c), plugPrefix)
}

// Frame is a column oriented time series, every column has one value per timestamp.
type Frame struct {
	Time    []time.Time
	Columns map[Channel][]float64
}

func NewFrame(times []time.Time) Frame {
	return Frame{Time: times, Columns: make(map[Channel][]float64)}
}

func (f Frame) Len() int {
	return len(f.Time)
}

func (f Frame) IsEmpty() bool {
	return len(f.Time) == 0
}

func (f Frame) First() time.Time {
	if f.IsEmpty() {
		return time.Time{}
	}
	return f.Time[0]
}

func (f Frame) Last() time.Time {
	if f.IsEmpty() {
		return time.Time{}
	}
	return f.Time[len(f.Time)-1]
}

// Column returns the values of a channel, absent if the channel was never recorded.
func (f Frame) Column(c Channel) maybe.Maybe[[]float64] {
	values, ok := f.Columns[c]
	if !ok || values == nil {
		return maybe.None[[]float64]()
	}
	return maybe.Some(values)
}

// ColumnOrZero returns the values of a channel or zeros if absent.
func (f Frame) ColumnOrZero(c Channel) []float64 {
	if values, ok := f.Column(c).Get(); ok {
		return values
	}
	return make([]float64, f.Len())
}

func (f *Frame) Set(c Channel, values []float64) error {
	if len(values) != f.Len() {
		return fmt.Errorf("channel %s has %d values, frame has %d timestamps", c, len(values), f.Len())
	}
	if f.Columns == nil {
		f.Columns = make(map[Channel][]float64)
	}
	f.Columns[c] = values
	return nil
}

func (f Frame) Channels() []Channel {
	cs := make([]Channel, 0, len(f.Columns))
	for c := range f.Columns {
		cs = append(cs, c)
	}
	slices.Sort(cs)
	return cs
}

// Slice returns rows [i, j), sharing the underlying arrays.
func (f Frame) Slice(i, j int) Frame {
	out := Frame{Time: f.Time[i:j], Columns: make(map[Channel][]float64, len(f.Columns))}
	for c, values := range f.Columns {
		out.Columns[c] = values[i:j]
	}
	return out
}

// Range returns the rows with from <= t < to.
func (f Frame) Range(from, to time.Time) Frame {
	i := sort.Search(f.Len(), func(k int) bool { return !f.Time[k].Before(from) })
	j := sort.Search(f.Len(), func(k int) bool { return !f.Time[k].Before(to) })
	if j < i {
		j = i
	}
	return f.Slice(i, j)
}

// Through returns the rows with from <= t <= to.
func (f Frame) Through(from, to time.Time) Frame {
	return f.Range(from, to.Add(time.Nanosecond))
}

func (f Frame) CheckMonotonic() error {
	for i := 1; i < f.Len(); i++ {
		if !f.Time[i].After(f.Time[i-1]) {
			return fmt.Errorf("%w: %s follows %s", ErrNonMonotonic,
				f.Time[i].Format(time.RFC3339), f.Time[i-1].Format(time.RFC3339))
		}
	}
	return nil
}

// Interval is the most common spacing between samples, one minute if undecidable.
func (f Frame) Interval() time.Duration {
	if f.Len() < 2 {
		return time.Minute
	}
	counts := make(map[time.Duration]int)
	best, bestCount := time.Minute, 0
	for i := 1; i < f.Len(); i++ {
		d := f.Time[i].Sub(f.Time[i-1])
		counts[d]++
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	if best <= 0 {
		return time.Minute
	}
	return best
}

// Reanchor moves every timestamp to the same wall clock time on day.
// Clock changes may collapse or reorder samples, which is reported as ErrNonMonotonic.
func (f Frame) Reanchor(day days.Day, loc *time.Location) (Frame, error) {
	out := Frame{Time: make([]time.Time, f.Len()), Columns: f.Columns}
	for i, t := range f.Time {
		out.Time[i] = day.At(loc, days.ClockOf(t.In(loc)))
	}
	if err := out.CheckMonotonic(); err != nil {
		return Frame{}, fmt.Errorf("re-anchoring to %s: %w", day, err)
	}
	return out, nil
}

// Concat joins frames in order. Channels missing in some frame are filled with zeros.
func Concat(frames ...Frame) (Frame, error) {
	channels := make(map[Channel]bool)
	n := 0
	for _, f := range frames {
		n += f.Len()
		for c := range f.Columns {
			channels[c] = true
		}
	}

	out := Frame{Time: make([]time.Time, 0, n), Columns: make(map[Channel][]float64, len(channels))}
	for c := range channels {
		out.Columns[c] = make([]float64, 0, n)
	}
	for _, f := range frames {
		out.Time = append(out.Time, f.Time...)
		for c := range channels {
			out.Columns[c] = append(out.Columns[c], f.ColumnOrZero(c)...)
		}
	}

	if err := out.CheckMonotonic(); err != nil {
		return Frame{}, err
	}

	return out, nil
}
