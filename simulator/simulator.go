package simulator

import (
	"fmt"
	"time"

	"github.com/icodeforyou/solarbank-forecast/series"
)

// Result holds one value per input sample. Input is the effective panel input
// after clamping, so Output[i] == Input[i] + ChargeDischarge[i] always holds.
type Result struct {
	Time            []time.Time
	Input           []float64
	ChargeDischarge []float64 // Negative when charging
	Output          []float64
	StateOfCharge   []float64
	Trip            TripState
	TrippedAt       time.Time
	FinalSoC        float64
}

// Frame converts the result into the solarbank channels.
func (r Result) Frame() series.Frame {
	f := series.NewFrame(r.Time)
	f.Columns[series.PanelInput] = r.Input
	f.Columns[series.BatteryPower] = r.ChargeDischarge
	f.Columns[series.BatteryOutput] = r.Output
	f.Columns[series.StateOfCharge] = r.StateOfCharge
	return f
}

// Regime returns the charge (<= 0) and discharge (>= 0) request for an
// effective input. Charge never exceeds MaxChargePower, discharge limits and
// protection are applied later.
func (p Params) Regime(input float64) (charge float64, discharge float64) {
	switch {
	case input < p.AbsorbThreshold:
		charge, discharge = -input, p.HomeSetpoint
	case input < p.IdleThreshold:
		return 0, 0
	case input < p.BufferThreshold:
		charge = p.Baseline - input
	default:
		charge = -p.MaxChargePower
	}
	return max(charge, -p.MaxChargePower), discharge
}

func (p Params) effectiveInput(v float64) float64 {
	return min(max(v, 0), p.Ceiling)
}

func (p Params) limitDischarge(d float64) float64 {
	d = min(d, p.MaxDischargePower)
	if d < p.MinDischargePower {
		return 0
	}
	return d
}

// Run simulates the battery over a panel input series starting at soc.
func Run(times []time.Time, input []float64, soc float64, p Params) (Result, error) {
	if len(times) != len(input) {
		return Result{}, fmt.Errorf("simulation input has %d timestamps and %d values", len(times), len(input))
	}
	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid simulation parameters: %w", err)
	}

	n := len(input)
	r := Result{
		Time:            times,
		Input:           make([]float64, n),
		ChargeDischarge: make([]float64, n),
		Output:          make([]float64, n),
		StateOfCharge:   make([]float64, n),
	}

	interval := series.Frame{Time: times}.Interval()
	protection := NewProtection(p.EmptyFraction, p.FullFraction)
	soc = clamp01(soc)

	for i := range n {
		dt := interval
		if i > 0 {
			dt = times[i].Sub(times[i-1])
		}

		in := p.effectiveInput(input[i])
		charge, discharge := p.Regime(in)
		discharge = p.limitDischarge(discharge)

		c, d := protection.Limit(charge, discharge)
		cd := c + d
		next := soc - cd*dt.Hours()/p.CapacityWh

		if protection.Observe(next, cd) {
			if r.TrippedAt.IsZero() {
				r.TrippedAt = times[i]
			}
			c, d = protection.Limit(charge, discharge)
			cd = c + d
			next = soc - cd*dt.Hours()/p.CapacityWh
		}

		soc = clamp01(next)
		r.Input[i] = in
		r.ChargeDischarge[i] = cd
		r.Output[i] = in + cd
		r.StateOfCharge[i] = soc
	}

	r.Trip = protection.State()
	r.FinalSoC = soc

	return r, nil
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
