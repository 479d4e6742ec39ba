package days

import (
	"fmt"
	"time"
)

const (
	dayLayout   = "060102"
	clockLayout = "15:04"
)

// Day identifies a calendar day as YYMMDD, e.g. "250615".
type Day string

func Parse(str string) (Day, error) {
	if _, err := time.Parse(dayLayout, str); err != nil {
		return "", fmt.Errorf("invalid day %q: %w", str, err)
	}
	return Day(str), nil
}

func FromTime(t time.Time) Day {
	if t.IsZero() {
		return ""
	}
	return Day(t.Format(dayLayout))
}

func Today(loc *time.Location) Day {
	return FromTime(time.Now().In(loc))
}

func (d Day) String() string {
	return string(d)
}

func (d Day) IsZero() bool {
	return d == ""
}

// Midnight returns the start of the day in loc.
func (d Day) Midnight(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dayLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// End returns the start of the following day in loc.
func (d Day) End(loc *time.Location) time.Time {
	return d.Add(1).Midnight(loc)
}

// At returns the wall clock time c on this day in loc.
func (d Day) At(loc *time.Location, c Clock) time.Time {
	m := d.Midnight(loc)
	return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, int(c), 0, loc)
}

func (d Day) Add(days int) Day {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return d
	}
	return FromTime(t.AddDate(0, 0, days))
}

func (d Day) Sub(days int) Day {
	return d.Add(-days)
}

func (d Day) Year() int {
	t, err := time.Parse(dayLayout, string(d))
	if err != nil {
		return 0
	}
	return t.Year()
}

// Compare works on the string form since YYMMDD sorts chronologically within a century.
func (d Day) Compare(other Day) int {
	switch {
	case d < other:
		return -1
	case d > other:
		return 1
	default:
		return 0
	}
}

func (d Day) Before(other Day) bool {
	return d.Compare(other) < 0
}

// Hours returns the start of every local hour of the day, 23 or 25 of them
// on daylight saving transitions.
func (d Day) Hours(loc *time.Location) []time.Time {
	start := d.Midnight(loc)
	end := d.End(loc)
	var hs []time.Time
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		hs = append(hs, t)
	}
	return hs
}

// IsClosed tells if the day is over, i.e. no more samples will be written for it.
func (d Day) IsClosed(now time.Time) bool {
	return !now.Before(d.End(now.Location()))
}

// Clock is a wall clock time of day in seconds since midnight.
type Clock int

func NewClock(hour, minute, second int) Clock {
	return Clock(hour*3600 + minute*60 + second)
}

func ClockOf(t time.Time) Clock {
	return NewClock(t.Hour(), t.Minute(), t.Second())
}

func ParseClock(str string) (Clock, error) {
	t, err := time.Parse(clockLayout, str)
	if err != nil {
		t, err = time.Parse(time.TimeOnly, str)
		if err != nil {
			return 0, fmt.Errorf("invalid clock %q: %w", str, err)
		}
	}
	return ClockOf(t), nil
}

func (c Clock) Hour() int {
	return int(c) / 3600
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// Window returns every day within ±radius days of ref's calendar date in each
// year from firstYear up to ref's year, oldest first. Days on or after ref are
// excluded.
func Window(ref Day, radius int, firstYear int) []Day {
	t, err := time.Parse(dayLayout, string(ref))
	if err != nil {
		return nil
	}

	var result []Day
	for y := firstYear; y <= t.Year(); y++ {
		center := time.Date(y, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		for k := -radius; k <= radius; k++ {
			d := FromTime(center.AddDate(0, 0, k))
			if d.Before(ref) {
				result = append(result, d)
			}
		}
	}

	return result
}
