package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/weather"
)

const (
	ForecastURL = "https://api.open-meteo.com/v1/forecast"
	ArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"

	hourLayout = "2006-01-02T15:04"
	dateLayout = time.DateOnly
)

// Days older than this are read from the archive API.
const archiveAfterDays = 5

// Client for the Open-Meteo forecast and historical weather APIs
type Client struct {
	logger      *slog.Logger
	httpClient  *http.Client
	forecastURL string
	archiveURL  string
	now         func() time.Time
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		logger:      logger,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		forecastURL: ForecastURL,
		archiveURL:  ArchiveURL,
		now:         time.Now,
	}
}

// SetBaseURLs replaces both API endpoints (useful for testing)
func (c *Client) SetBaseURLs(forecastURL, archiveURL string) {
	c.forecastURL = forecastURL
	c.archiveURL = archiveURL
}

func (c *Client) HourlyCloudCover(ctx context.Context, day days.Day, loc weather.Location) ([]weather.Hour, error) {
	res, err := c.get(ctx, day, loc, "hourly", "cloud_cover")
	if err != nil {
		return nil, err
	}
	if len(res.Hourly.Time) != len(res.Hourly.CloudCover) {
		return nil, fmt.Errorf("open-meteo returned %d hours and %d cloud cover values",
			len(res.Hourly.Time), len(res.Hourly.CloudCover))
	}

	hours := make([]weather.Hour, 0, len(res.Hourly.Time))
	for i, str := range res.Hourly.Time {
		cover := res.Hourly.CloudCover[i]
		if cover == nil {
			continue
		}
		t, err := time.ParseInLocation(hourLayout, str, loc.TZ)
		if err != nil {
			return nil, fmt.Errorf("invalid open-meteo hour %q: %w", str, err)
		}
		hours = append(hours, weather.Hour{Start: t, CloudCover: *cover})
	}

	return weather.OfDay(hours, day, loc.TZ), nil
}

func (c *Client) DaylightMinutes(ctx context.Context, day days.Day, loc weather.Location) (float64, error) {
	res, err := c.get(ctx, day, loc, "daily", "daylight_duration")
	if err != nil {
		return 0, err
	}
	for i, str := range res.Daily.Time {
		if i < len(res.Daily.DaylightDuration) && res.Daily.DaylightDuration[i] != nil && str == date(day, loc) {
			return *res.Daily.DaylightDuration[i] / 60, nil
		}
	}
	return 0, fmt.Errorf("%w: open-meteo has no daylight duration for %s", weather.ErrNotAvailable, day)
}

func (c *Client) get(ctx context.Context, day days.Day, loc weather.Location, kind, variable string) (*response, error) {
	reqURL, err := c.buildURL(day, loc, kind, variable)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	c.logger.Debug("fetching weather from open-meteo", slog.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Operation: "GET " + kind, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		msg := apiErr.Reason
		if msg == "" {
			msg = string(body)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	var res response
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &res, nil
}

func (c *Client) buildURL(day days.Day, loc weather.Location, kind, variable string) (string, error) {
	base := c.forecastURL
	if day.Before(days.FromTime(c.now().In(loc.TZ)).Sub(archiveAfterDays)) {
		base = c.archiveURL
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	query := u.Query()
	query.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	query.Set(kind, variable)
	query.Set("timezone", loc.TZ.String())
	query.Set("start_date", date(day, loc))
	query.Set("end_date", date(day, loc))
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func date(day days.Day, loc weather.Location) string {
	return day.Midnight(loc.TZ).Format(dateLayout)
}
