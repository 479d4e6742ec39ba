package www

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/icodeforyou/solarbank-forecast/convert"
	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/forecast"
	"github.com/icodeforyou/solarbank-forecast/matcher"
)

// closestDay is one row of the ranking, rank 0 is the requested day itself.
type closestDay struct {
	Rank      int       `json:"rank"`
	Day       days.Day  `json:"day"`
	Closeness float64   `json:"closeness"`
	Integrals []float64 `json:"integrals"`
}

type closestDaysResponse struct {
	Day      days.Day     `json:"day"`
	Start    string       `json:"start"`
	Stop     string       `json:"stop"`
	Channels []string     `json:"channels"`
	Days     []closestDay `json:"days"`
}

// NewClosestDaysHandler ranks the history around a day against it, the day
// defaults to today.
func NewClosestDaysHandler(logger *slog.Logger, logs forecast.LogProvider, settings func() forecast.Settings, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s := settings()
		q := r.URL.Query()

		day := days.Today(loc)
		if v := q.Get("day"); v != "" {
			d, err := days.Parse(v)
			if err != nil {
				writeError(logger, w, http.StatusBadRequest, err)
				return
			}
			day = d
		}

		req := matcher.Request{Target: day, Start: s.Start, Stop: s.Stop, Channels: s.Channels}
		var err error
		if q.Has("start") {
			if req.Start, err = clockParam(r.URL, "start"); err != nil {
				writeError(logger, w, http.StatusBadRequest, err)
				return
			}
		}
		if q.Has("stop") {
			if req.Stop, err = clockParam(r.URL, "stop"); err != nil {
				writeError(logger, w, http.StatusBadRequest, err)
				return
			}
		}
		if v := q.Get("channels"); v != "" {
			req.Channels = nil
			for _, str := range strings.Split(v, ",") {
				spec, err := matcher.ParseChannelSpec(str)
				if err != nil {
					writeError(logger, w, http.StatusBadRequest, fmt.Errorf("channel %q: %w", str, err))
					return
				}
				req.Channels = append(req.Channels, spec)
			}
		}

		window, err := logs.GetWindow(r.Context(), intOrDefault(r.URL, "radius", s.WindowRadius), day)
		if err != nil {
			logger.Error("handling closest days request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}
		history, err := forecast.FetchLogs(r.Context(), logger, logs, window)
		if err != nil {
			logger.Error("handling closest days request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}

		result, err := matcher.New(logger, loc).Match(history, req)
		if err != nil {
			writeJSON(logger, w, http.StatusUnprocessableEntity, failureResponse(err))
			return
		}

		resp := closestDaysResponse{
			Day:   day,
			Start: result.StartClock().String(),
			Stop:  result.StopClock().String(),
		}
		for _, c := range result.Channels {
			resp.Channels = append(resp.Channels, c.String())
		}
		n := max(intOrDefault(r.URL, "n", s.Analogs), 0)
		for rank, c := range result.Ranked[:min(n+1, len(result.Ranked))] {
			integrals := make([]float64, len(c.Integrals))
			for i, v := range c.Integrals {
				integrals[i] = convert.TwoDecimals(v)
			}
			resp.Days = append(resp.Days, closestDay{Rank: rank, Day: c.Day, Closeness: convert.TwoDecimals(c.Closeness), Integrals: integrals})
		}
		writeJSON(logger, w, http.StatusOK, resp)
	}
}
