package daylight

import (
	"context"
	"fmt"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/weather"
	"github.com/sixdouglas/suncalc"
)

// Sun computes daylight from the position of the sun. It has no cloud data.
type Sun struct{}

// Window returns sunrise and sunset of day at the location.
func Window(day days.Day, loc weather.Location) (time.Time, time.Time, error) {
	noon := day.At(loc.TZ, days.NewClock(12, 0, 0))
	times := suncalc.GetTimes(noon, loc.Latitude, loc.Longitude)
	sunrise := times["sunrise"].Value
	sunset := times["sunset"].Value
	if sunrise.IsZero() || sunset.IsZero() || !sunset.After(sunrise) {
		return time.Time{}, time.Time{}, fmt.Errorf("no sunrise/sunset on %s at %.4f,%.4f", day, loc.Latitude, loc.Longitude)
	}
	return sunrise.In(loc.TZ), sunset.In(loc.TZ), nil
}

// Minutes is the number of minutes between sunrise and sunset.
func Minutes(day days.Day, loc weather.Location) (float64, error) {
	sunrise, sunset, err := Window(day, loc)
	if err != nil {
		return 0, err
	}
	return sunset.Sub(sunrise).Minutes(), nil
}

func (Sun) HourlyCloudCover(_ context.Context, day days.Day, _ weather.Location) ([]weather.Hour, error) {
	return nil, fmt.Errorf("%w: sun position has no cloud cover for %s", weather.ErrNotAvailable, day)
}

func (Sun) DaylightMinutes(_ context.Context, day days.Day, loc weather.Location) (float64, error) {
	return Minutes(day, loc)
}
