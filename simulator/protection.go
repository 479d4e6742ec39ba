package simulator

import "strings"

// TripState is the state of the battery protection cutoff. A trip never
// re-arms within one simulation run.
type TripState uint8

const (
	TripNone  TripState = 0
	TripEmpty TripState = 1 // Discharge is cut off
	TripFull  TripState = 2 // Charge is cut off
)

func (s TripState) Has(t TripState) bool {
	return s&t != 0
}

func (s TripState) String() string {
	if s == TripNone {
		return "normal"
	}
	var parts []string
	if s.Has(TripEmpty) {
		parts = append(parts, "empty")
	}
	if s.Has(TripFull) {
		parts = append(parts, "full")
	}
	return "tripped(" + strings.Join(parts, ",") + ")"
}

type Protection struct {
	empty float64
	full  float64
	state TripState
}

func NewProtection(empty, full float64) *Protection {
	return &Protection{empty: empty, full: full}
}

func (p *Protection) State() TripState {
	return p.state
}

// Limit applies the current trip state to a charge (<= 0) and discharge (>= 0) request.
func (p *Protection) Limit(charge, discharge float64) (float64, float64) {
	if p.state.Has(TripEmpty) {
		discharge = 0
		charge = min(charge, 0)
	}
	if p.state.Has(TripFull) {
		charge = max(charge, 0)
	}
	return charge, discharge
}

// Observe trips the protection when soc would leave the allowed band in the
// direction the battery is currently moving. Returns true if the state changed.
func (p *Protection) Observe(soc float64, chargeDischarge float64) bool {
	before := p.state
	if soc < p.empty && chargeDischarge > 0 {
		p.state |= TripEmpty
	}
	if soc > p.full && chargeDischarge < 0 {
		p.state |= TripFull
	}
	return p.state != before
}
