package forecast

import (
	"fmt"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/matcher"
	"github.com/icodeforyou/solarbank-forecast/series"
)

type PhaseName string

const (
	PreSlot        PhaseName = "pre_slot"
	SearchSlot     PhaseName = "search_slot"
	PostSlot       PhaseName = "post_slot"
	TodaySimulated PhaseName = "today_simulated"
	TomorrowBefore PhaseName = "tomorrow_before"
	TomorrowAfter  PhaseName = "tomorrow_after"
)

func (p PhaseName) Simulated() bool {
	return p == TodaySimulated || p == TomorrowBefore || p == TomorrowAfter
}

func (p PhaseName) Tomorrow() bool {
	return p == TomorrowBefore || p == TomorrowAfter
}

// Phase is a contiguous part of the forecast horizon. From and To bound the
// phase even when it has no samples, From inclusive and To exclusive.
type Phase struct {
	Name  PhaseName
	From  time.Time
	To    time.Time
	Frame series.Frame
}

type View string

const (
	ViewToday    View = "today"
	ViewTomorrow View = "tomorrow"
	ViewTotal    View = "total"
)

func ParseView(str string) (View, error) {
	switch View(str) {
	case ViewToday, ViewTomorrow, ViewTotal:
		return View(str), nil
	case "":
		return ViewTotal, nil
	default:
		return "", fmt.Errorf("unknown view %q, expected today, tomorrow or total", str)
	}
}

func (v View) includes(p PhaseName) bool {
	switch v {
	case ViewToday:
		return !p.Tomorrow()
	case ViewTomorrow:
		return p.Tomorrow()
	default:
		return true
	}
}

// Pieces is what the assembler splices together.
type Pieces struct {
	Day       days.Day
	Now       time.Time
	SlotStart time.Time
	SlotStop  time.Time
	// Recorded samples of Day up to Now
	Real series.Frame
	// Simulated samples for the rest of Day
	TodaySimulated series.Frame
	// Simulated samples for the day after Day
	Tomorrow      series.Frame
	ReferenceHour days.Clock
}

// Partition is the ordered list of phases of one forecast.
type Partition struct {
	Day    days.Day
	Loc    *time.Location
	Phases []Phase
}

// Assemble splits the pieces into phases. Every phase boundary follows the
// previous one so the phases cover [midnight of Day, midnight after tomorrow).
func Assemble(p Pieces, loc *time.Location) (Partition, error) {
	if p.SlotStart.IsZero() || p.SlotStop.IsZero() {
		return Partition{}, fmt.Errorf("%w: no search slot on %s", matcher.ErrNoRadiation, p.Day)
	}
	if p.SlotStop.Before(p.SlotStart) {
		return Partition{}, fmt.Errorf("search slot stops at %s before it starts at %s",
			p.SlotStop.Format(time.TimeOnly), p.SlotStart.Format(time.TimeOnly))
	}
	for name, f := range map[string]series.Frame{"real": p.Real, "today": p.TodaySimulated, "tomorrow": p.Tomorrow} {
		if err := f.CheckMonotonic(); err != nil {
			return Partition{}, fmt.Errorf("%s samples: %w", name, err)
		}
	}

	tomorrow := p.Day.Add(1)
	midnight := p.Day.Midnight(loc)
	endOfToday := p.Day.End(loc)
	reference := tomorrow.At(loc, p.ReferenceHour)
	endOfTomorrow := tomorrow.End(loc)

	recorded := p.Real.Range(midnight, endOfToday)
	if !p.Now.IsZero() {
		recorded = recorded.Through(midnight, p.Now)
	}
	afterSlot := p.SlotStop.Add(time.Nanosecond)
	splitAt := endOfToday
	if !recorded.IsEmpty() {
		splitAt = recorded.Last().Add(time.Nanosecond)
	}

	phases := []Phase{
		{Name: PreSlot, From: midnight, To: p.SlotStart, Frame: recorded.Range(midnight, p.SlotStart)},
		{Name: SearchSlot, From: p.SlotStart, To: afterSlot, Frame: recorded.Range(p.SlotStart, afterSlot)},
		{Name: PostSlot, From: afterSlot, To: splitAt, Frame: recorded.Range(afterSlot, splitAt)},
		{Name: TodaySimulated, From: splitAt, To: endOfToday, Frame: p.TodaySimulated.Range(splitAt, endOfToday)},
		{Name: TomorrowBefore, From: endOfToday, To: reference, Frame: p.Tomorrow.Range(endOfToday, reference)},
		{Name: TomorrowAfter, From: reference, To: endOfTomorrow, Frame: p.Tomorrow.Range(reference, endOfTomorrow)},
	}

	part := Partition{Day: p.Day, Loc: loc, Phases: phases}
	if _, err := part.Frame(ViewTotal); err != nil {
		return Partition{}, err
	}
	return part, nil
}

// View returns the non empty phases of a view in chronological order.
func (p Partition) View(v View) []Phase {
	var result []Phase
	for _, ph := range p.Phases {
		if v.includes(ph.Name) && !ph.Frame.IsEmpty() {
			result = append(result, ph)
		}
	}
	return result
}

// Frame joins the phases of a view into one continuous frame.
func (p Partition) Frame(v View) (series.Frame, error) {
	phases := p.View(v)
	frames := make([]series.Frame, len(phases))
	for i, ph := range phases {
		frames[i] = ph.Frame
	}
	f, err := series.Concat(frames...)
	if err != nil {
		return series.Frame{}, fmt.Errorf("splicing %s view of %s: %w", v, p.Day, err)
	}
	return f, nil
}

func (p Partition) Phase(name PhaseName) (Phase, bool) {
	for _, ph := range p.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return Phase{}, false
}
