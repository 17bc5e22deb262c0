package trend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/elonfeng/aqiwatch/internal/store"
)

// Readings is the slice of the store the engine needs.
type Readings interface {
	ListReadings(ctx context.Context, opts store.ReadingOpts) ([]store.Reading, error)
	LatestReadings(ctx context.Context) ([]store.Reading, error)
}

// Trend summarises how a city's AQI moved over the window.
type Trend struct {
	State     string    `json:"state"`
	City      string    `json:"city"`
	Samples   int       `json:"samples"`
	FirstAQI  int       `json:"first_aqi"`
	LastAQI   int       `json:"last_aqi"`
	PeakAQI   int       `json:"peak_aqi"`
	MeanAQI   float64   `json:"mean_aqi"`
	Velocity  float64   `json:"velocity"` // AQI per hour
	Direction Direction `json:"direction"`
	RiskScore int       `json:"risk_score"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
}

// Engine computes AQI trends from stored readings.
type Engine struct {
	readings        Readings
	window          time.Duration
	steadyThreshold float64
	logger          *slog.Logger
	now             func() time.Time
}

// NewEngine creates a trend engine. Zero window means six hours; zero
// threshold means 2 AQI per hour.
func NewEngine(r Readings, window time.Duration, steadyThreshold float64, logger *slog.Logger) *Engine {
	if window <= 0 {
		window = 6 * time.Hour
	}
	if steadyThreshold <= 0 {
		steadyThreshold = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		readings:        r,
		window:          window,
		steadyThreshold: steadyThreshold,
		logger:          logger,
		now:             time.Now,
	}
}

// Window returns the look-back period.
func (e *Engine) Window() time.Duration { return e.window }

// CityTrend computes the trend for one city. It returns store.ErrNotFound
// when the window holds no readings.
func (e *Engine) CityTrend(ctx context.Context, state, city string) (*Trend, error) {
	readings, err := e.readings.ListReadings(ctx, store.ReadingOpts{
		State: state,
		City:  city,
		Since: e.now().Add(-e.window),
		Limit: 1000,
	})
	if err != nil {
		return nil, fmt.Errorf("list readings %s/%s: %w", state, city, err)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("trend %s/%s: %w", state, city, store.ErrNotFound)
	}

	t := e.summarise(readings)
	t.State, t.City = state, city
	return t, nil
}

// Detect computes trends for every city with a recent reading, fastest
// rising first.
func (e *Engine) Detect(ctx context.Context) ([]Trend, error) {
	latest, err := e.readings.LatestReadings(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest readings: %w", err)
	}

	cutoff := e.now().Add(-e.window)
	var trends []Trend
	for _, r := range latest {
		if r.CollectedAt.Before(cutoff) || r.Location.City == "" {
			continue
		}
		t, err := e.CityTrend(ctx, r.Location.State, r.Location.City)
		if err != nil {
			e.logger.Warn("trend failed", "state", r.Location.State, "city", r.Location.City, "err", err)
			continue
		}
		trends = append(trends, *t)
	}

	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Velocity != trends[j].Velocity {
			return trends[i].Velocity > trends[j].Velocity
		}
		return trends[i].LastAQI > trends[j].LastAQI
	})
	return trends, nil
}

// summarise accepts readings in any order.
func (e *Engine) summarise(readings []store.Reading) *Trend {
	ordered := make([]store.Reading, len(readings))
	copy(ordered, readings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CollectedAt.Before(ordered[j].CollectedAt)
	})

	first := ordered[0]
	last := ordered[len(ordered)-1]

	t := &Trend{
		Samples:  len(ordered),
		FirstAQI: first.AQI,
		LastAQI:  last.AQI,
		From:     first.CollectedAt,
		To:       last.CollectedAt,
	}

	total := 0
	for _, r := range ordered {
		total += r.AQI
		if r.AQI > t.PeakAQI {
			t.PeakAQI = r.AQI
		}
	}
	t.MeanAQI = float64(total) / float64(len(ordered))
	t.Velocity = velocity(first.AQI, last.AQI, last.CollectedAt.Sub(first.CollectedAt))
	t.Direction = classify(t.Velocity, e.steadyThreshold)
	t.RiskScore = riskScore(last.AQI)
	return t
}
