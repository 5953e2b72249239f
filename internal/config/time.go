package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// epochMillisCutoff separates epoch seconds from epoch milliseconds.
// Collector events carry milliseconds; anything above ~5138 AD in seconds
// is read as milliseconds.
const epochMillisCutoff = 1e11

var (
	absoluteLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	durationPart = regexp.MustCompile(`(\d+)([dhms])`)
)

// EpochTime converts an epoch value in seconds or milliseconds to UTC.
func EpochTime(n int64) time.Time {
	if n > epochMillisCutoff || n < -epochMillisCutoff {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// ParseTimeRef parses a --since/--until value: an absolute timestamp, an
// epoch value as written by the collector, or a duration subtracted from
// now ("1h", "30m", "1d2h").
func ParseTimeRef(s string) (time.Time, error) {
	return parseTimeRef(s, time.Now())
}

func parseTimeRef(s string, now time.Time) (time.Time, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return time.Time{}, fmt.Errorf("time reference is empty")
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseInt(input, 10, 64); err == nil {
		return EpochTime(n), nil
	}

	d, err := ParseDuration(input)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time reference %q: want RFC3339, epoch or duration", input)
	}
	return now.Add(-d), nil
}

// ParseDuration parses a Go duration, or a sequence of <n>d/h/m/s parts
// such as "2d" or "1d12h".
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	matches := durationPart.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}

	var total time.Duration
	covered := 0
	for _, m := range matches {
		covered += m[1] - m[0]
		value, err := strconv.ParseInt(s[m[2]:m[3]], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		unit := time.Second
		switch s[m[4]:m[5]] {
		case "d":
			unit = 24 * time.Hour
		case "h":
			unit = time.Hour
		case "m":
			unit = time.Minute
		}
		total += time.Duration(value) * unit
	}
	if covered != len(s) {
		return 0, fmt.Errorf("invalid duration: %s", s)
	}
	return total, nil
}
