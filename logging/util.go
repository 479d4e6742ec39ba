package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// LevelFromString reads a configured level, falling back to info.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}
	lvl, err := ParseLevel(*str)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel accepts the four slog level names in any case, with an optional
// offset such as "warn+2".
func ParseLevel(str string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(str))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", str)
	}
	return lvl, nil
}
