package collector

import (
	"math"
	"strings"
	"time"
)

const msPerHour = int64(time.Hour / time.Millisecond)

// MaskTime floors now to the hour and adds the client's padding, clamped
// to [0, 24h] with NaN read as 0. Without padding it adds the current
// second of the minute, which spreads events a little without revealing
// the minute.
// The result is in Unix milliseconds.
func MaskTime(now time.Time, padding *float64) int64 {
	ms := now.UnixMilli()
	base := floorDiv(ms, msPerHour) * msPerHour

	if padding != nil {
		p := *padding
		switch limit := float64(24 * msPerHour); {
		case math.IsNaN(p) || p < 0:
			p = 0
		case p > limit:
			p = limit
		}
		return base + int64(p)
	}

	seconds := (ms - base) / 1000
	return base + (seconds%60)*1000
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// User agent classes.
const (
	UAMobile    = "mobile"
	UABot       = "bot"
	UADesktop   = "desktop"
	UAUndefined = "undefined"
)

// MaskUserAgent reduces a user agent header to a device class.
func MaskUserAgent(ua string) string {
	if ua == "" {
		return UAUndefined
	}
	lc := strings.ToLower(ua)

	if strings.Contains(lc, "mobile") || strings.Contains(lc, "opera mini") {
		return UAMobile
	}
	for _, s := range []string{"bot", "spider", "crawler", "ahc/"} {
		if strings.Contains(lc, s) {
			return UABot
		}
	}
	return UADesktop
}
