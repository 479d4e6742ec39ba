package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func hourlyBody(date string, n int) string {
	times := make([]string, n)
	covers := make([]string, n)
	for i := range n {
		times[i] = fmt.Sprintf("%q", fmt.Sprintf("%sT%02d:00", date, i))
		covers[i] = fmt.Sprintf("%d", i*4)
	}
	covers[n-1] = "null"
	return fmt.Sprintf(`{"latitude":59.3,"longitude":18.0,"timezone":"Europe/Stockholm",
		"hourly":{"time":[%s],"cloud_cover":[%s]}}`, strings.Join(times, ","), strings.Join(covers, ","))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, weather.Location) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tz, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)

	c := NewClient(discard)
	c.SetBaseURLs(srv.URL+"/forecast", srv.URL+"/archive")
	c.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, tz) }
	return c, weather.Location{Latitude: 59.3, Longitude: 18.0, TZ: tz}
}

func TestHourlyCloudCoverFromForecast(t *testing.T) {
	var path string
	c, loc := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "cloud_cover", r.URL.Query().Get("hourly"))
		assert.Equal(t, "2025-06-15", r.URL.Query().Get("start_date"))
		assert.Equal(t, "Europe/Stockholm", r.URL.Query().Get("timezone"))
		_, _ = w.Write([]byte(hourlyBody("2025-06-15", 24)))
	})

	hours, err := c.HourlyCloudCover(context.Background(), "250615", loc)
	require.NoError(t, err)
	assert.Equal(t, "/forecast", path)
	require.Len(t, hours, 23, "null values are skipped")
	assert.Equal(t, time.Date(2025, 6, 15, 10, 0, 0, 0, loc.TZ), hours[10].Start)
	assert.Equal(t, 40.0, hours[10].CloudCover)
}

func TestHourlyCloudCoverFromArchive(t *testing.T) {
	var path string
	c, loc := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(hourlyBody("2024-06-15", 24)))
	})

	_, err := c.HourlyCloudCover(context.Background(), "240615", loc)
	require.NoError(t, err)
	assert.Equal(t, "/archive", path)
}

func TestDaylightMinutes(t *testing.T) {
	c, loc := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "daylight_duration", r.URL.Query().Get("daily"))
		_, _ = w.Write([]byte(`{"daily":{"time":["2025-06-15"],"daylight_duration":[66600.0]}}`))
	})

	minutes, err := c.DaylightMinutes(context.Background(), "250615", loc)
	require.NoError(t, err)
	assert.InDelta(t, 1110, minutes, 1e-9)
}

func TestAPIError(t *testing.T) {
	c, loc := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Parameter 'start_date' is out of allowed range"}`))
	})

	_, err := c.HourlyCloudCover(context.Background(), "250615", loc)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "out of allowed range")
}

func TestNetworkError(t *testing.T) {
	c, loc := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	c.SetBaseURLs("http://127.0.0.1:1/forecast", "http://127.0.0.1:1/archive")

	_, err := c.DaylightMinutes(context.Background(), "250615", loc)
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}
