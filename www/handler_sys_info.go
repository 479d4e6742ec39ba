package www

import (
	"log/slog"
	"net/http"
	"time"
)

type SysInfo struct {
	Version   string    `json:"version"`
	StartedAt time.Time `json:"startedAt"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timezone  string    `json:"timezone"`
	Providers []string  `json:"providers"`
}

func NewSysInfoHandler(logger *slog.Logger, sysInfo SysInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(logger, w, http.StatusOK, sysInfo)
	}
}
