package daylight

import (
	"context"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stockholm(t *testing.T) weather.Location {
	tz, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	return weather.Location{Latitude: 59.33, Longitude: 18.07, TZ: tz}
}

func TestMinutesFollowSeasons(t *testing.T) {
	loc := stockholm(t)

	summer, err := Minutes("250621", loc)
	require.NoError(t, err)
	winter, err := Minutes("251221", loc)
	require.NoError(t, err)

	// roughly 18.5 h and 6 h
	assert.InDelta(t, 18.5*60, summer, 30)
	assert.InDelta(t, 6*60, winter, 30)
}

func TestWindowIsLocal(t *testing.T) {
	loc := stockholm(t)
	sunrise, sunset, err := Window("250615", loc)
	require.NoError(t, err)
	assert.Equal(t, 15, sunrise.Day())
	assert.Less(t, sunrise.Hour(), 5)
	assert.Greater(t, sunset.Hour(), 20)
}

func TestSunHasNoCloudCover(t *testing.T) {
	_, err := Sun{}.HourlyCloudCover(context.Background(), "250615", stockholm(t))
	assert.ErrorIs(t, err, weather.ErrNotAvailable)
}
