package series

import (
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
)

// DayLog is the minute resolution record of one calendar day.
type DayLog struct {
	Day days.Day
	Frame
}

// Sign restricts a channel to one side of zero before integration.
type Sign int

const (
	SignAll Sign = iota
	SignPositive
	SignNegative
)

func (s Sign) Apply(v float64) float64 {
	switch s {
	case SignPositive:
		return max(v, 0)
	case SignNegative:
		return min(v, 0)
	default:
		return v
	}
}

func (s Sign) String() string {
	switch s {
	case SignPositive:
		return "positive"
	case SignNegative:
		return "negative"
	default:
		return "all"
	}
}

func ParseSign(str string) Sign {
	switch str {
	case "positive", "+":
		return SignPositive
	case "negative", "-":
		return SignNegative
	default:
		return SignAll
	}
}

// Integrate returns the energy in Wh of a channel, sum of power times the
// sampling interval. An absent channel integrates to zero.
func (f Frame) Integrate(c Channel, sign Sign) float64 {
	values, ok := f.Column(c).Get()
	if !ok {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += sign.Apply(v)
	}
	return sum * f.Interval().Hours()
}

// Mean power of a channel, zero if absent or empty.
func (f Frame) Mean(c Channel) float64 {
	values, ok := f.Column(c).Get()
	if !ok || len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PositiveWindow returns the first and last timestamp where the channel is
// strictly positive.
func (f Frame) PositiveWindow(c Channel) (time.Time, time.Time, bool) {
	values, ok := f.Column(c).Get()
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	first, last := -1, -1
	for i, v := range values {
		if v > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return time.Time{}, time.Time{}, false
	}
	return f.Time[first], f.Time[last], true
}

// ClockSlot returns the rows of the log within [start, stop] wall clock time
// on the log's own calendar day.
func (l DayLog) ClockSlot(loc *time.Location, start, stop days.Clock) Frame {
	return l.Through(l.Day.At(loc, start), l.Day.At(loc, stop))
}

// LastValue returns the latest sample of a channel.
func (f Frame) LastValue(c Channel) (float64, bool) {
	values, ok := f.Column(c).Get()
	if !ok || len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}
