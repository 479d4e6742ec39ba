package matcher

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
)

var (
	ErrNoRadiation         = errors.New("no radiation on target day")
	ErrIncompatibleHistory = errors.New("no compatible history")
)

// ChannelSpec names a channel to compare, optionally restricted to one sign.
type ChannelSpec struct {
	Channel series.Channel
	Sign    series.Sign
}

func (c ChannelSpec) String() string {
	if c.Sign == series.SignAll {
		return string(c.Channel)
	}
	return fmt.Sprintf("%s(%s)", c.Channel, c.Sign)
}

// ParseChannelSpec reads "SBPI", "SBPB+" or "SBPB-".
func ParseChannelSpec(str string) (ChannelSpec, error) {
	str = strings.TrimSpace(str)
	sign := series.SignAll
	if n := len(str); n > 0 && (str[n-1] == '+' || str[n-1] == '-') {
		sign = series.ParseSign(str[n-1:])
		str = str[:n-1]
	}
	if str == "" {
		return ChannelSpec{}, fmt.Errorf("empty channel")
	}
	return ChannelSpec{Channel: series.Channel(strings.ToUpper(str)), Sign: sign}, nil
}

type Request struct {
	Target days.Day
	Start  maybe.Maybe[days.Clock]
	Stop   maybe.Maybe[days.Clock]
	// The first channel decides the radiation window of the target day.
	Channels []ChannelSpec
}

type Candidate struct {
	Day       days.Day
	Closeness float64
	Integrals []float64 // Wh, aligned with Request.Channels
}

type Result struct {
	Start    time.Time
	Stop     time.Time
	Channels []ChannelSpec
	// Ranked by ascending closeness, the target day itself is always first.
	Ranked []Candidate
}

func (r Result) StartClock() days.Clock {
	return days.ClockOf(r.Start)
}

func (r Result) StopClock() days.Clock {
	return days.ClockOf(r.Stop)
}

// Analogs returns up to n best matching days, the target excluded.
func (r Result) Analogs(n int) []Candidate {
	if len(r.Ranked) <= 1 {
		return nil
	}
	rest := r.Ranked[1:]
	return rest[:min(max(n, 0), len(rest))]
}

type Matcher struct {
	logger *slog.Logger
	loc    *time.Location
}

func New(logger *slog.Logger, loc *time.Location) *Matcher {
	return &Matcher{logger: logger, loc: loc}
}

// Match ranks the days in history by how close their energy in the search slot
// is to the target day.
func (m *Matcher) Match(history []series.DayLog, req Request) (Result, error) {
	if len(req.Channels) == 0 {
		return Result{}, fmt.Errorf("no channels to compare")
	}

	idx := slices.IndexFunc(history, func(l series.DayLog) bool { return l.Day == req.Target })
	if idx < 0 {
		return Result{}, fmt.Errorf("%w: no log for %s", ErrNoRadiation, req.Target)
	}
	target := history[idx]

	start, stop, err := m.slot(target, req)
	if err != nil {
		return Result{}, err
	}
	start, stop = start.In(m.loc), stop.In(m.loc)
	startClock, stopClock := days.ClockOf(start), days.ClockOf(stop)

	targetIntegrals := m.integrals(target, req.Channels, startClock, stopClock)
	candidates := make([]Candidate, 0, len(history))

	for _, l := range history {
		if l.Day == req.Target || l.IsEmpty() {
			continue
		}
		integrals := m.integrals(l, req.Channels, startClock, stopClock)
		if !compatible(req.Channels, targetIntegrals, integrals) {
			m.logger.Debug("dropping incompatible day", slog.String("day", l.Day.String()))
			continue
		}
		candidates = append(candidates, Candidate{
			Day:       l.Day,
			Closeness: distance(targetIntegrals, integrals),
			Integrals: integrals,
		})
	}

	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("%w for %s among %d days", ErrIncompatibleHistory, req.Target, len(history)-1)
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		switch {
		case a.Closeness < b.Closeness:
			return -1
		case a.Closeness > b.Closeness:
			return 1
		default:
			return 0
		}
	})

	ranked := append([]Candidate{{Day: req.Target, Integrals: targetIntegrals}}, candidates...)

	return Result{
		Start:    start,
		Stop:     stop,
		Channels: req.Channels,
		Ranked:   ranked,
	}, nil
}

// slot intersects the requested bounds with the radiation window of the target day.
func (m *Matcher) slot(target series.DayLog, req Request) (time.Time, time.Time, error) {
	primary := req.Channels[0].Channel
	radStart, radStop, ok := target.PositiveWindow(primary)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s never positive on %s", ErrNoRadiation, primary, req.Target)
	}

	start, stop := radStart, radStop
	if c, ok := req.Start.Get(); ok {
		if t := req.Target.At(m.loc, c); t.After(start) {
			start = t
		}
	}
	if c, ok := req.Stop.Get(); ok {
		if t := req.Target.At(m.loc, c); t.Before(stop) {
			stop = t
		}
	}

	if stop.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: requested slot %s-%s is outside %s-%s",
			ErrNoRadiation, start.Format(time.TimeOnly), stop.Format(time.TimeOnly),
			radStart.Format(time.TimeOnly), radStop.Format(time.TimeOnly))
	}

	return start, stop, nil
}

func (m *Matcher) integrals(l series.DayLog, channels []ChannelSpec, start, stop days.Clock) []float64 {
	slot := l.ClockSlot(m.loc, start, stop)
	result := make([]float64, len(channels))
	for i, spec := range channels {
		if !slot.Column(spec.Channel).IsValid() && !spec.Channel.IsOptional() {
			m.logger.Warn("channel missing, using zero",
				slog.String("day", l.Day.String()),
				slog.String("channel", string(spec.Channel)),
				slog.Any("error", series.ErrMissingChannel))
		}
		result[i] = slot.Integrate(spec.Channel, spec.Sign)
	}
	return result
}

// compatible rejects candidates that can not approximate the target a priori,
// e.g. a day without any charging compared to a charging day.
func compatible(channels []ChannelSpec, target, candidate []float64) bool {
	for i, spec := range channels {
		if target[i] != 0 && candidate[i] == 0 {
			return false
		}
		if spec.Sign != series.SignAll && target[i] == 0 && candidate[i] != 0 {
			return false
		}
	}
	return true
}

func distance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := b[i] - a[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
