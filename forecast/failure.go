package forecast

import (
	"errors"
	"fmt"

	"github.com/icodeforyou/solarbank-forecast/adapter"
	"github.com/icodeforyou/solarbank-forecast/matcher"
	"github.com/icodeforyou/solarbank-forecast/series"
)

type Stage string

const (
	StageLogs     Stage = "logs"
	StageMatch    Stage = "match"
	StageAdapter  Stage = "adapter"
	StageSimulate Stage = "simulate"
	StageAssemble Stage = "assemble"
)

// Failure is the single reason a forecast could not be produced.
type Failure struct {
	Stage  Stage
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("forecast failed in %s: %s", f.Stage, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(stage Stage, err error) *Failure {
	return &Failure{Stage: stage, Reason: reason(err), Err: err}
}

func reason(err error) string {
	switch {
	case errors.Is(err, matcher.ErrNoRadiation):
		return "no radiation recorded today, no forecast possible"
	case errors.Is(err, matcher.ErrIncompatibleHistory):
		return "no compatible days in history"
	case errors.Is(err, adapter.ErrWeatherUnavailable):
		return "weather unavailable for the analog days"
	case errors.Is(err, series.ErrNonMonotonic):
		return "samples are not strictly increasing"
	default:
		return err.Error()
	}
}
