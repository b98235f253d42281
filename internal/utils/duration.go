package utils

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// MaxTimedDuration caps parsed durations at the platform timeout ceiling.
const MaxTimedDuration = 28 * 24 * time.Hour

var unitSeconds = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
}

// ParseDuration parses compact duration strings like "30m", "1h" or "2d".
// Unlike time.ParseDuration it accepts days and rejects anything above the
// 28-day ceiling.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if len(raw) < 2 {
		return 0, errors.New("duration must look like 30m, 1h or 2d")
	}

	unit := raw[len(raw)-1]
	seconds, ok := unitSeconds[unit]
	if !ok {
		return 0, errors.New("duration unit must be s, m, h or d")
	}

	value, err := strconv.ParseInt(raw[:len(raw)-1], 10, 64)
	if err != nil || value <= 0 {
		return 0, errors.New("duration value must be a positive number")
	}

	d := time.Duration(value*seconds) * time.Second
	if d > MaxTimedDuration {
		return 0, errors.New("duration cannot exceed 28 days")
	}
	return d, nil
}

// FormatDuration renders a duration in the same compact form ParseDuration
// accepts, picking the largest unit that divides it evenly.
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	switch {
	case seconds == 0:
		return "0s"
	case seconds%86400 == 0:
		return strconv.FormatInt(seconds/86400, 10) + "d"
	case seconds%3600 == 0:
		return strconv.FormatInt(seconds/3600, 10) + "h"
	case seconds%60 == 0:
		return strconv.FormatInt(seconds/60, 10) + "m"
	default:
		return strconv.FormatInt(seconds, 10) + "s"
	}
}
