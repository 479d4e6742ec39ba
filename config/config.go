package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/forecast"
	"github.com/icodeforyou/solarbank-forecast/logging"
	"github.com/icodeforyou/solarbank-forecast/matcher"
	"github.com/icodeforyou/solarbank-forecast/simulator"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
	"github.com/icodeforyou/solarbank-forecast/weather"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string
	Port    int16
}

type AppConfigDatabase struct {
	Path string
	// How many days of samples and weather should be kept, default: 0 (forever)
	SampleRetentionDays *int `mapstructure:"sample_retention_days"`
	// How many days of forecast runs should be kept, default: 30
	ForecastRetentionDays *int `mapstructure:"forecast_retention_days"`
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
	// When the maintenance task runs, default: "30 2 * * *"
	MaintenanceAt *string `mapstructure:"maintenance_at"`
}

func (d AppConfigDatabase) GetSampleRetentionDays() int {
	return valueOr(d.SampleRetentionDays, 0)
}

func (d AppConfigDatabase) GetForecastRetentionDays() int {
	return valueOr(d.ForecastRetentionDays, 30)
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	return valueOr(d.BackupRetentionDays, 90)
}

func (d AppConfigDatabase) GetMaintenanceAt() string {
	return valueOr(d.MaintenanceAt, "30 2 * * *")
}

type AppConfigLocation struct {
	Latitude  float64 // Your approx latitude position (WGS84)
	Longitude float64 // Your approx longitude position (WGS84)
	// IANA name, e.g. "Europe/Stockholm", default: "UTC"
	Timezone *string `mapstructure:"timezone"`
}

func (l AppConfigLocation) GetTimezone() (*time.Location, error) {
	tz, err := time.LoadLocation(valueOr(l.Timezone, "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	return tz, nil
}

func (l AppConfigLocation) Weather() (weather.Location, error) {
	tz, err := l.GetTimezone()
	if err != nil {
		return weather.Location{}, err
	}
	return weather.Location{Latitude: l.Latitude, Longitude: l.Longitude, TZ: tz}, nil
}

type AppConfigBattery struct {
	CapacityWh    *float64 `mapstructure:"capacity_wh"`    // default: 1600
	EmptyFraction *float64 `mapstructure:"empty_fraction"` // default: 0.1
	FullFraction  *float64 `mapstructure:"full_fraction"`  // default: 1.0
	// Used when no state of charge has been recorded today, default: 0.5
	DefaultSoC *float64 `mapstructure:"default_soc"`
}

// All values in watts
type AppConfigSimulator struct {
	AbsorbThreshold   *float64 `mapstructure:"absorb_threshold"`
	IdleThreshold     *float64 `mapstructure:"idle_threshold"`
	Baseline          *float64 `mapstructure:"baseline"`
	BufferThreshold   *float64 `mapstructure:"buffer_threshold"`
	Ceiling           *float64 `mapstructure:"ceiling"`
	MaxChargePower    *float64 `mapstructure:"max_charge_power"`
	MaxDischargePower *float64 `mapstructure:"max_discharge_power"`
	MinDischargePower *float64 `mapstructure:"min_discharge_power"`
	HomeSetpoint      *float64 `mapstructure:"home_setpoint"`
}

type AppConfigMatcher struct {
	// Days around the same date in earlier years, default: 14
	WindowRadius *int `mapstructure:"window_radius"`
	// Number of analog days to use, default: 3
	Analogs *int `mapstructure:"analogs"`
	// Channels to compare, a trailing "+" or "-" keeps only that sign, default: ["SBPI"]
	Channels []string `mapstructure:"channels"`
	// Optional bounds of the search slot, "HH:MM"
	Start *string `mapstructure:"start"`
	Stop  *string `mapstructure:"stop"`
}

type AppConfigAdapter struct {
	// Added to both sides of the clear sky ratio, default: 1
	Smoothing *float64 `mapstructure:"smoothing"`
	// Forecast without weather adapter when no weather is available
	AllowUnadapted bool `mapstructure:"allow_unadapted"`
}

func (a AppConfigAdapter) GetSmoothing() float64 {
	return valueOr(a.Smoothing, 1.0)
}

type AppConfigForecast struct {
	// Splits tomorrow in a before and after part, default: "12:00"
	ReferenceHour *string `mapstructure:"reference_hour"`
	// Bucket size of tables, 0 means one row per phase, default: 60
	BucketMinutes *int   `mapstructure:"bucket_minutes"`
	RunAt         string `mapstructure:"run_at"`
}

func (f AppConfigForecast) GetBucket() time.Duration {
	return time.Duration(valueOr(f.BucketMinutes, 60)) * time.Minute
}

type AppConfigWeather struct {
	// Tried in order: "openmeteo", "smhi", "sun", default: ["openmeteo", "smhi", "sun"]
	Providers []string `mapstructure:"providers"`
	RunAt     string   `mapstructure:"run_at"`
}

func (w AppConfigWeather) GetProviders() []string {
	if len(w.Providers) == 0 {
		return []string{"openmeteo", "smhi", "sun"}
	}
	return w.Providers
}

type AppConfigMqtt struct {
	Host     string
	Port     int16
	Username string
	Password string
	ClientID *string `mapstructure:"client_id"`
	// Topic prefix, default: "solarbank"
	Prefix *string `mapstructure:"prefix"`
	// Seconds without samples before the watchdog fires, default: 300
	InactivityTimeout *int `mapstructure:"inactivity_timeout"`
}

func (m AppConfigMqtt) GetClientID() string {
	return valueOr(m.ClientID, "solarbank-forecast")
}

func (m AppConfigMqtt) GetPrefix() string {
	return valueOr(m.Prefix, "solarbank")
}

func (m AppConfigMqtt) GetInactivityTimeout() time.Duration {
	return time.Duration(valueOr(m.InactivityTimeout, 300)) * time.Second
}

type AppConfigCache struct {
	// Keep closed day logs in memory, default: true
	Enabled *bool `mapstructure:"enabled"`
}

func (c AppConfigCache) IsEnabled() bool {
	return valueOr(c.Enabled, true)
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	return valueOr(l.DbMaxEntries, 10000)
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api       AppConfigApi
	Database  AppConfigDatabase
	Location  AppConfigLocation
	Battery   AppConfigBattery
	Simulator AppConfigSimulator
	Matcher   AppConfigMatcher
	Adapter   AppConfigAdapter
	Forecast  AppConfigForecast
	Weather   AppConfigWeather
	Mqtt      AppConfigMqtt
	Cache     AppConfigCache
	Logging   AppConfigLogging
}

// SimulatorParams merges the battery and simulator sections onto the defaults.
func (c AppConfig) SimulatorParams() simulator.Params {
	p := simulator.DefaultParams()
	p.CapacityWh = valueOr(c.Battery.CapacityWh, p.CapacityWh)
	p.EmptyFraction = valueOr(c.Battery.EmptyFraction, p.EmptyFraction)
	p.FullFraction = valueOr(c.Battery.FullFraction, p.FullFraction)

	s := c.Simulator
	p.AbsorbThreshold = valueOr(s.AbsorbThreshold, p.AbsorbThreshold)
	p.IdleThreshold = valueOr(s.IdleThreshold, p.IdleThreshold)
	p.Baseline = valueOr(s.Baseline, p.Baseline)
	p.BufferThreshold = valueOr(s.BufferThreshold, p.BufferThreshold)
	p.Ceiling = valueOr(s.Ceiling, p.Ceiling)
	p.MaxChargePower = valueOr(s.MaxChargePower, p.MaxChargePower)
	p.MaxDischargePower = valueOr(s.MaxDischargePower, p.MaxDischargePower)
	p.MinDischargePower = valueOr(s.MinDischargePower, p.MinDischargePower)
	p.HomeSetpoint = valueOr(s.HomeSetpoint, p.HomeSetpoint)
	return p
}

func (c AppConfig) ForecastSettings() (forecast.Settings, error) {
	s := forecast.DefaultSettings()
	s.Simulator = c.SimulatorParams()
	if err := s.Simulator.Validate(); err != nil {
		return s, err
	}
	s.WindowRadius = valueOr(c.Matcher.WindowRadius, s.WindowRadius)
	s.Analogs = valueOr(c.Matcher.Analogs, s.Analogs)
	s.DefaultSoC = valueOr(c.Battery.DefaultSoC, s.DefaultSoC)
	s.AllowUnadapted = c.Adapter.AllowUnadapted

	if len(c.Matcher.Channels) > 0 {
		s.Channels = s.Channels[:0]
		for _, str := range c.Matcher.Channels {
			spec, err := matcher.ParseChannelSpec(str)
			if err != nil {
				return s, fmt.Errorf("matcher channel %q: %w", str, err)
			}
			s.Channels = append(s.Channels, spec)
		}
	}

	var err error
	if s.Start, err = parseClock(c.Matcher.Start); err != nil {
		return s, fmt.Errorf("matcher start: %w", err)
	}
	if s.Stop, err = parseClock(c.Matcher.Stop); err != nil {
		return s, fmt.Errorf("matcher stop: %w", err)
	}
	if c.Forecast.ReferenceHour != nil {
		if s.ReferenceHour, err = days.ParseClock(*c.Forecast.ReferenceHour); err != nil {
			return s, fmt.Errorf("forecast reference hour: %w", err)
		}
	}

	return s, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads the config file. Variables in a .env file in the working
// directory are exported first so they can override file values.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to read .env file: %w", err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	return unmarshal(v)
}

// Watch calls onChange with the new config every time the file is written.
func Watch(path string, logger *slog.Logger, onChange func(*AppConfig)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := unmarshal(v)
		if err != nil {
			logger.Error("config reload failed", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config reloaded", slog.String("file", e.Name))
		onChange(c)
	})
	v.WatchConfig()

	return nil
}

func unmarshal(v *viper.Viper) (*AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	return &c, nil
}

func parseClock(str *string) (maybe.Maybe[days.Clock], error) {
	if str == nil || *str == "" {
		return maybe.None[days.Clock](), nil
	}
	c, err := days.ParseClock(*str)
	if err != nil {
		return maybe.None[days.Clock](), err
	}
	return maybe.Some(c), nil
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
