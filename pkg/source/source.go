package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/aqiwatch/pkg/location"
)

// SourceType identifies which provider a reading came from.
type SourceType string

const (
	SourceIQAir       SourceType = "iqair"
	SourceOpenWeather SourceType = "openweather"
	SourceWAQI        SourceType = "waqi"
	SourceCombined    SourceType = "combined"
	SourceRSS         SourceType = "rss"
)

// ErrNoData is returned when a provider has no reading for a location.
var ErrNoData = errors.New("no air quality data available for this location")

// Weather is the current weather at a reading's location.
type Weather struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	WindSpeedMS  float64 `json:"wind_speed_ms"`
	WindDirDeg   float64 `json:"wind_dir_deg,omitempty"`
	PressureHPa  float64 `json:"pressure_hpa,omitempty"`
	Icon         string  `json:"icon,omitempty"`
}

// Reading is the standardized observation returned by every provider.
// AQI providers fill AQI, MainPollutant and Weather; component providers
// fill Components with concentrations in μg/m³ keyed by canonical code.
type Reading struct {
	Source          SourceType         `json:"source"`
	ComponentSource SourceType         `json:"component_source,omitempty"`
	Location        location.Location  `json:"location"`
	AQI             int                `json:"aqi"`
	MainPollutant   string             `json:"main_pollutant,omitempty"`
	Weather         *Weather           `json:"weather,omitempty"`
	Components      map[string]float64 `json:"components,omitempty"`
	ObservedAt      time.Time          `json:"observed_at"`
	CollectedAt     time.Time          `json:"collected_at"`
}

// Source is the interface every provider client implements.
type Source interface {
	Name() SourceType
	Fetch(ctx context.Context, loc location.Location) (*Reading, error)
}

// APIError is a non-success answer from a provider.
type APIError struct {
	Source  SourceType
	Status  int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("%s API error %d: %s", e.Source, e.Status, msg)
}

// AllSourceTypes returns the reading providers.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceIQAir,
		SourceOpenWeather,
		SourceWAQI,
	}
}
