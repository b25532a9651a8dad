package model

import (
	"fmt"
	"math"
	"time"
)

var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// FormatCountdown renders seconds as m:ss.
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// WindDirection maps degrees to one of eight compass points.
func WindDirection(deg float64) string {
	idx := int(math.Round(deg/45)) % len(compassPoints)
	if idx < 0 {
		idx += len(compassPoints)
	}
	return compassPoints[idx]
}

// LocalClock formats an epoch timestamp as HH:MM in a city's UTC offset.
func LocalClock(ts int64, offsetSeconds int) string {
	if ts == 0 {
		return "N/A"
	}
	return time.Unix(ts+int64(offsetSeconds), 0).UTC().Format("15:04")
}

// IconURL returns the provider's image for an icon code.
func IconURL(icon string) string {
	if icon == "" {
		icon = defaultIcon
	}
	return fmt.Sprintf("https://openweathermap.org/img/wn/%s@2x.png", icon)
}
