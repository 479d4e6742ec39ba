package smhi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/solarbank-forecast/convert"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/weather"
)

// Client reads the SMHI point forecast. It only knows about the coming days.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    BASE_URL,
	}
}

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Get returns the hours of the forecast that carry a cloud cover.
func (c *Client) Get(ctx context.Context, lon float64, lat float64) ([]Point, error) {
	url := fmt.Sprintf(
		"%s/api/category/pmp3g/version/2/geotype/point/lon/%0.4f/lat/%0.4f/data.json",
		c.baseURL, lon, lat)

	c.logger.Info("fetching forecast from SMHI...", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating SMHI request: %w", err)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error getting SMHI forecast: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading SMHI response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SMHI responded with %d: %s", res.StatusCode, string(body))
	}

	var smhi smhi
	if err := json.Unmarshal(body, &smhi); err != nil {
		return nil, fmt.Errorf("error unmarshaling SMHI json: %w", err)
	}

	result := make([]Point, 0, len(smhi.TimeSeries))
	for _, entry := range smhi.TimeSeries {
		cc, ok := entry.value(paramCloudCover)
		if !ok {
			c.logger.Debug("SMHI hour without cloud cover", slog.Time("hour", entry.ValidTime))
			continue
		}
		temp, _ := entry.value(paramTemperature)
		result = append(result, Point{Hour: entry.ValidTime, CloudCover: cc, Temperature: temp})
	}

	return result, nil
}

func (c *Client) HourlyCloudCover(ctx context.Context, day days.Day, loc weather.Location) ([]weather.Hour, error) {
	forecast, err := c.Get(ctx, loc.Longitude, loc.Latitude)
	if err != nil {
		return nil, err
	}

	hours := make([]weather.Hour, 0, len(forecast))
	for _, f := range forecast {
		hours = append(hours, weather.Hour{
			Start:      f.Hour.In(loc.TZ),
			CloudCover: convert.OctasToPercentage(f.CloudCover),
		})
	}

	hours = weather.OfDay(hours, day, loc.TZ)
	if len(hours) == 0 {
		return nil, fmt.Errorf("%w: SMHI forecast does not cover %s", weather.ErrNotAvailable, day)
	}
	return hours, nil
}

func (c *Client) DaylightMinutes(_ context.Context, day days.Day, _ weather.Location) (float64, error) {
	return 0, fmt.Errorf("%w: SMHI has no daylight duration for %s", weather.ErrNotAvailable, day)
}
