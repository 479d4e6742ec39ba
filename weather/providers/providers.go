// Package providers builds the weather sources named in the configuration.
package providers

import (
	"log/slog"
	"strings"

	"github.com/icodeforyou/solarbank-forecast/daylight"
	"github.com/icodeforyou/solarbank-forecast/openmeteo"
	"github.com/icodeforyou/solarbank-forecast/smhi"
	"github.com/icodeforyou/solarbank-forecast/weather"
)

// FromNames keeps the given order, unknown names are logged and skipped.
func FromNames(logger *slog.Logger, names []string) []weather.Source {
	var sources []weather.Source
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "openmeteo":
			sources = append(sources, openmeteo.NewClient(logger.With("module", "openmeteo")))
		case "smhi":
			sources = append(sources, smhi.NewClient(logger.With("module", "smhi")))
		case "sun":
			sources = append(sources, daylight.Sun{})
		default:
			logger.Warn("unknown weather provider, ignored", slog.String("provider", name))
		}
	}
	return sources
}
