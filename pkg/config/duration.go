package config

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var simpleDurationPattern = regexp.MustCompile(`^(\d+)\s*([smhd])$`)

var durationUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// ParseDuration parses duration strings like "30s", "5m", "1h" or "7d".
// The day unit is not part of time.ParseDuration; anything that does not
// match the simple number-plus-unit form falls through to the standard
// parser, so compound values like "1h30m" still work.
func ParseDuration(s string) (time.Duration, error) {
	matches := simpleDurationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return time.ParseDuration(s)
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return time.ParseDuration(s)
	}

	return time.Duration(value) * durationUnits[matches[2]], nil
}
