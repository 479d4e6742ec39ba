package www

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/series"
)

type RunReader interface {
	GetLatestForecastRun(ctx context.Context) (database.ForecastRunRow, []database.ForecastValueRow, bool, error)
}

type forecastRunRow struct {
	Start     time.Time                  `json:"start"`
	Stop      time.Time                  `json:"stop"`
	Simulated bool                       `json:"simulated"`
	Values    map[series.Channel]float64 `json:"values"`
}

type forecastRunResponse struct {
	ID        int64            `json:"id"`
	Day       days.Day         `json:"day"`
	CreatedAt time.Time        `json:"createdAt"`
	Adapted   bool             `json:"adapted"`
	Analogs   []days.Day       `json:"analogs"`
	StartSoC  float64          `json:"startSoc"`
	FinalSoC  float64          `json:"finalSoc"`
	Trip      string           `json:"trip"`
	Rows      []forecastRunRow `json:"rows"`
}

// NewForecastRunHandler serves the last persisted forecast run, which
// survives restarts of the service.
func NewForecastRunHandler(logger *slog.Logger, runs RunReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		run, values, ok, err := runs.GetLatestForecastRun(r.Context())
		if err != nil {
			logger.Error("handling forecast run request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}
		if !ok {
			writeError(logger, w, http.StatusNotFound, errors.New("no forecast run stored"))
			return
		}

		resp := forecastRunResponse{
			ID:        run.ID,
			Day:       run.Day,
			CreatedAt: run.CreatedAt,
			Adapted:   run.Adapted,
			Analogs:   run.Analogs,
			StartSoC:  run.StartSoC,
			FinalSoC:  run.FinalSoC,
			Trip:      run.Trip,
			Rows:      groupRunValues(values),
		}
		writeJSON(logger, w, http.StatusOK, resp)
	}
}

// groupRunValues folds the per channel values into one row per interval.
// Values must be ordered by start.
func groupRunValues(values []database.ForecastValueRow) []forecastRunRow {
	var rows []forecastRunRow
	for _, v := range values {
		if n := len(rows); n == 0 || !rows[n-1].Start.Equal(v.Start) {
			rows = append(rows, forecastRunRow{
				Start:     v.Start,
				Stop:      v.Stop,
				Simulated: v.Simulated,
				Values:    make(map[series.Channel]float64),
			})
		}
		rows[len(rows)-1].Values[v.Channel] = v.Value
	}
	return rows
}
