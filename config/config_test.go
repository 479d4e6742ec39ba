package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/icodeforyou/solarbank-forecast/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "location:\n  latitude: 59.3\n  longitude: 18.1\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, c.Database.GetSampleRetentionDays())
	assert.Equal(t, 30, c.Database.GetForecastRetentionDays())
	assert.Equal(t, 90, c.Database.GetBackupRetentionDays())
	assert.Equal(t, time.Hour, c.Forecast.GetBucket())
	assert.Equal(t, []string{"openmeteo", "smhi", "sun"}, c.Weather.GetProviders())
	assert.Equal(t, "solarbank", c.Mqtt.GetPrefix())
	assert.Equal(t, 5*time.Minute, c.Mqtt.GetInactivityTimeout())
	assert.True(t, c.Cache.IsEnabled())
	assert.Equal(t, 1.0, c.Adapter.GetSmoothing())

	tz, err := c.Location.GetTimezone()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, tz)

	assert.Equal(t, simulator.DefaultParams(), c.SimulatorParams())

	s, err := c.ForecastSettings()
	require.NoError(t, err)
	assert.Equal(t, 14, s.WindowRadius)
	assert.Equal(t, 3, s.Analogs)
	assert.Equal(t, days.NewClock(12, 0, 0), s.ReferenceHour)
	assert.False(t, s.Start.IsValid())
	assert.False(t, s.Stop.IsValid())
}

func TestLoadValues(t *testing.T) {
	c, err := Load(writeConfig(t, `
location:
  latitude: 59.3
  longitude: 18.1
  timezone: "Europe/Stockholm"
battery:
  capacity_wh: 3200
  default_soc: 0.2
simulator:
  ceiling: 1200
matcher:
  window_radius: 7
  analogs: 5
  channels: ["sbpi", "SBPB-"]
  start: "08:00"
  stop: "11:30"
adapter:
  allow_unadapted: true
forecast:
  reference_hour: "13:00"
  bucket_minutes: 15
`))
	require.NoError(t, err)

	loc, err := c.Location.Weather()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Stockholm", loc.TZ.String())
	assert.Equal(t, 59.3, loc.Latitude)
	assert.Equal(t, 15*time.Minute, c.Forecast.GetBucket())

	p := c.SimulatorParams()
	assert.Equal(t, 3200.0, p.CapacityWh)
	assert.Equal(t, 1200.0, p.Ceiling)
	assert.Equal(t, 35.0, p.AbsorbThreshold)

	s, err := c.ForecastSettings()
	require.NoError(t, err)
	assert.Equal(t, 7, s.WindowRadius)
	assert.Equal(t, 5, s.Analogs)
	assert.Equal(t, 0.2, s.DefaultSoC)
	assert.True(t, s.AllowUnadapted)
	assert.Equal(t, days.NewClock(13, 0, 0), s.ReferenceHour)
	assert.Equal(t, days.NewClock(8, 0, 0), s.Start.Value())
	assert.Equal(t, days.NewClock(11, 30, 0), s.Stop.Value())
	require.Len(t, s.Channels, 2)
	assert.Equal(t, series.PanelInput, s.Channels[0].Channel)
	assert.Equal(t, series.Channel("SBPB"), s.Channels[1].Channel)
	assert.Equal(t, series.SignNegative, s.Channels[1].Sign)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	c, err := Load(writeConfig(t, "simulator:\n  idle_threshold: 900\n"))
	require.NoError(t, err)
	_, err = c.ForecastSettings()
	assert.Error(t, err)

	c, err = Load(writeConfig(t, "matcher:\n  start: \"25:00\"\n"))
	require.NoError(t, err)
	_, err = c.ForecastSettings()
	assert.Error(t, err)

	c, err = Load(writeConfig(t, "location:\n  timezone: \"Mars/Olympus\"\n"))
	require.NoError(t, err)
	_, err = c.Location.GetTimezone()
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("MATCHER_ANALOGS", "9")
	c, err := Load(writeConfig(t, "matcher:\n  analogs: 3\n"))
	require.NoError(t, err)
	s, err := c.ForecastSettings()
	require.NoError(t, err)
	assert.Equal(t, 9, s.Analogs)
}
