package www

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/adapter"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/forecast"
)

type adapterHour struct {
	Hour  time.Time `json:"hour"`
	Ratio float64   `json:"ratio"`
}

type adapterResponse struct {
	Day         days.Day      `json:"day"`
	Hours       []adapterHour `json:"hours"`
	SunDuration *float64      `json:"sunDuration,omitempty"`
}

// AdapterSource computes weather ratios between days.
type AdapterSource interface {
	forecast.Adapters
	SunDuration(ctx context.Context, target, other days.Day) (float64, error)
}

// NewAdapterHandler returns the hourly weather ratios of a day against its
// analog days, and the whole day daylight ratio against the first analog.
func NewAdapterHandler(logger *slog.Logger, adapters AdapterSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		day, err := days.Parse(r.URL.Query().Get("day"))
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, err)
			return
		}

		dayIDs := []days.Day{day}
		for _, str := range strings.Split(r.URL.Query().Get("analogs"), ",") {
			if str == "" {
				continue
			}
			d, err := days.Parse(strings.TrimSpace(str))
			if err != nil {
				writeError(logger, w, http.StatusBadRequest, err)
				return
			}
			dayIDs = append(dayIDs, d)
		}
		if len(dayIDs) < 2 {
			writeError(logger, w, http.StatusBadRequest, fmt.Errorf("need a target day and at least one analog day"))
			return
		}

		s, err := adapters.Hourly(r.Context(), dayIDs)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, adapter.ErrWeatherUnavailable) {
				status = http.StatusServiceUnavailable
			}
			writeError(logger, w, status, err)
			return
		}

		resp := adapterResponse{Day: s.Day, Hours: make([]adapterHour, s.Len())}
		for i := range s.Hours {
			resp.Hours[i] = adapterHour{Hour: s.Hours[i], Ratio: s.Ratios[i]}
		}
		if k, err := adapters.SunDuration(r.Context(), dayIDs[0], dayIDs[1]); err != nil {
			logger.Warn("no daylight ratio", slog.String("day", day.String()), slog.Any("error", err))
		} else {
			resp.SunDuration = &k
		}
		writeJSON(logger, w, http.StatusOK, resp)
	}
}
