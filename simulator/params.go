package simulator

import "fmt"

// Params describe the battery and the piecewise behaviour of the solarbank.
// Power values are in W.
type Params struct {
	CapacityWh    float64 // Usable battery capacity
	EmptyFraction float64 // State of charge where the battery stops discharging
	FullFraction  float64 // State of charge where the battery stops charging

	AbsorbThreshold float64 // Below this input the battery absorbs everything, no output
	IdleThreshold   float64 // Below this input the battery is idle and input passes through
	Baseline        float64 // Output kept while buffering between idle and buffer threshold
	BufferThreshold float64 // From this input the battery charges at its maximum rate
	Ceiling         float64 // Input is clamped to this before any rule applies

	MaxChargePower    float64
	MaxDischargePower float64
	MinDischargePower float64 // Discharge requests below this are suppressed
	HomeSetpoint      float64 // Requested discharge while input is below the absorb threshold, 0 disables
}

func DefaultParams() Params {
	return Params{
		CapacityWh:        1600,
		EmptyFraction:     0.1,
		FullFraction:      1.0,
		AbsorbThreshold:   35,
		IdleThreshold:     100,
		Baseline:          100,
		BufferThreshold:   600,
		Ceiling:           800,
		MaxChargePower:    500,
		MaxDischargePower: 800,
		MinDischargePower: 100,
		HomeSetpoint:      0,
	}
}

func (p Params) Validate() error {
	if p.CapacityWh <= 0 {
		return fmt.Errorf("capacity must be positive, got %f", p.CapacityWh)
	}
	if p.EmptyFraction < 0 || p.FullFraction > 1 || p.EmptyFraction >= p.FullFraction {
		return fmt.Errorf("invalid state of charge bounds [%f, %f]", p.EmptyFraction, p.FullFraction)
	}
	if !(p.AbsorbThreshold <= p.IdleThreshold && p.IdleThreshold <= p.BufferThreshold && p.BufferThreshold <= p.Ceiling) {
		return fmt.Errorf("thresholds must be ordered: absorb %f, idle %f, buffer %f, ceiling %f",
			p.AbsorbThreshold, p.IdleThreshold, p.BufferThreshold, p.Ceiling)
	}
	if p.MaxChargePower < 0 || p.MaxDischargePower < 0 || p.MinDischargePower < 0 {
		return fmt.Errorf("power limits must not be negative")
	}
	return nil
}
