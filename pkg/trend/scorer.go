package trend

import (
	"time"

	"github.com/elonfeng/aqiwatch/pkg/aqi"
)

// Direction is the coarse movement of AQI over a window.
type Direction string

const (
	Rising  Direction = "rising"
	Falling Direction = "falling"
	Steady  Direction = "steady"
)

// velocity returns AQI change per hour. Spans under six minutes are too
// short to be meaningful and report zero.
func velocity(first, last int, span time.Duration) float64 {
	hours := span.Hours()
	if hours < 0.1 {
		return 0
	}
	return float64(last-first) / hours
}

// classify maps a velocity to a direction; |v| below threshold is steady.
func classify(v, threshold float64) Direction {
	switch {
	case v >= threshold:
		return Rising
	case v <= -threshold:
		return Falling
	default:
		return Steady
	}
}

func riskScore(value int) int {
	score, _ := aqi.RiskScore(value)
	return score
}
