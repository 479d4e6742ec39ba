package www

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/icodeforyou/solarbank-forecast/types/maybe"
)

func intOrDefault(u *url.URL, key string, defaultValue int) int {
	if v := u.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

// durationOrDefault reads a number of minutes.
func durationOrDefault(u *url.URL, key string, defaultValue time.Duration) time.Duration {
	if v := u.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return time.Duration(i) * time.Minute
		}
	}
	return defaultValue
}

func clockParam(u *url.URL, key string) (maybe.Maybe[days.Clock], error) {
	v := u.Query().Get(key)
	if v == "" {
		return maybe.None[days.Clock](), nil
	}
	c, err := days.ParseClock(v)
	if err != nil {
		return maybe.None[days.Clock](), err
	}
	return maybe.Some(c), nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("writing json response", slog.Any("error", err))
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, status int, err error) {
	writeJSON(logger, w, status, errorResponse{Error: err.Error()})
}
