package www

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/solarbank-forecast/forecast"
)

type forecastResponse struct {
	forecast.Report
	// Set when the latest run failed and an older forecast is served
	Failure *errorResponse `json:"failure,omitempty"`
}

// NewForecastHandler serves the latest forecast, a POST runs the forecast
// task first.
func NewForecastHandler(logger *slog.Logger, latest *forecast.Latest, bucket func() time.Duration, task func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			task()
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		view, err := forecast.ParseView(r.URL.Query().Get("view"))
		if err != nil {
			writeError(logger, w, http.StatusBadRequest, err)
			return
		}

		f, runErr := latest.Get()
		if f == nil {
			if errors.Is(runErr, forecast.ErrNoForecast) {
				writeError(logger, w, http.StatusNotFound, runErr)
				return
			}
			writeJSON(logger, w, http.StatusServiceUnavailable, failureResponse(runErr))
			return
		}

		report, err := f.Report(view, durationOrDefault(r.URL, "bucket", bucket()))
		if err != nil {
			logger.Error("handling forecast request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}

		resp := forecastResponse{Report: report}
		if runErr != nil {
			resp.Failure = failureResponse(runErr)
		}
		writeJSON(logger, w, http.StatusOK, resp)
	}
}

func failureResponse(err error) *errorResponse {
	resp := &errorResponse{Error: err.Error()}
	var failure *forecast.Failure
	if errors.As(err, &failure) {
		resp.Stage = string(failure.Stage)
		resp.Reason = failure.Reason
	}
	return resp
}
