package smhi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/weather"
)

const body = `{
  "approvedTime": "2025-06-15T04:00:00Z",
  "referenceTime": "2025-06-15T04:00:00Z",
  "timeSeries": [
    {"validTime": "2025-06-15T08:00:00Z", "parameters": [
      {"name": "t", "levelType": "hl", "level": 2, "unit": "Cel", "values": [18.2]},
      {"name": "tcc_mean", "levelType": "hl", "level": 0, "unit": "octas", "values": [4]}
    ]},
    {"validTime": "2025-06-15T09:00:00Z", "parameters": [
      {"name": "tcc_mean", "levelType": "hl", "level": 0, "unit": "octas", "values": [8]}
    ]},
    {"validTime": "2025-06-15T10:00:00Z", "parameters": [
      {"name": "t", "levelType": "hl", "level": 2, "unit": "Cel", "values": [19.0]}
    ]},
    {"validTime": "2025-06-16T09:00:00Z", "parameters": [
      {"name": "tcc_mean", "levelType": "hl", "level": 0, "unit": "octas", "values": [0]}
    ]}
  ]
}`

func TestHourlyCloudCover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/lon/18.0700/lat/59.3300/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.SetBaseURL(srv.URL)

	loc := weather.Location{Latitude: 59.33, Longitude: 18.07, TZ: time.UTC}
	hours, err := c.HourlyCloudCover(context.Background(), "250615", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the 10:00 hour has no cloud cover and is left out
	if len(hours) != 2 {
		t.Fatalf("expected 2 hours, got %d", len(hours))
	}
	if hours[0].CloudCover != 50 {
		t.Errorf("expected 50%%, got %f", hours[0].CloudCover)
	}
	if hours[1].CloudCover != 100 {
		t.Errorf("expected 100%%, got %f", hours[1].CloudCover)
	}

	if _, err := c.HourlyCloudCover(context.Background(), "250620", loc); err == nil {
		t.Errorf("expected error for a day outside the forecast")
	}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.SetBaseURL(srv.URL)

	if _, err := c.Get(context.Background(), 18, 59); err == nil {
		t.Errorf("expected error on 503")
	}
}
