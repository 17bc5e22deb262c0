// Package insight turns a reading into the asthma education report.
package insight

import (
	"fmt"
	"time"

	"github.com/elonfeng/aqiwatch/pkg/aqi"
	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/source"
)

// Report is everything the insights view displays for one location.
type Report struct {
	Location        location.Location  `json:"location"`
	Source          source.SourceType  `json:"source"`
	AQI             int                `json:"aqi"`
	Category        string             `json:"category"`
	Color           string             `json:"color"`
	RiskScore       int                `json:"risk_score"`
	RiskLabel       string             `json:"risk_label"`
	Gauge           Gauge              `json:"gauge"`
	Weather         *source.Weather    `json:"weather,omitempty"`
	MainPollutant   MainPollutant      `json:"main_pollutant"`
	Pollutants      []PollutantDetail  `json:"pollutants"`
	Recommendations aqi.Recommendation `json:"recommendations"`
	Marker          Marker             `json:"marker"`
	ObservedAt      time.Time          `json:"observed_at"`
}

// Gauge is the AQI bar: fill fraction, colour and scale ticks.
type Gauge struct {
	Fraction float64  `json:"fraction"`
	Label    string   `json:"label"`
	Color    string   `json:"color"`
	Ticks    []string `json:"ticks"`
}

var gaugeTicks = []string{"0 - Good", "100 - Moderate", "200 - Unhealthy", "300+ - Hazardous"}

// MainPollutant describes the dominant pollutant. Value is nil when the
// component feed did not measure it.
type MainPollutant struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Value      *float64 `json:"value"`
	Unit       string   `json:"unit"`
	Effect     string   `json:"effect"`
	Mitigation string   `json:"mitigation"`
}

// PollutantDetail is one row of the pollutant table.
type PollutantDetail struct {
	aqi.Pollutant
	Value      float64 `json:"value"`
	PctOfSafe  float64 `json:"pct_of_safe"`
	LevelColor string  `json:"level_color"`
	Effect     string  `json:"effect"`
	Mitigation string  `json:"mitigation"`
}

// Marker is the map point for a location.
type Marker struct {
	Lat   float64  `json:"lat"`
	Lon   float64  `json:"lon"`
	RGB   [3]uint8 `json:"rgb"`
	Label string   `json:"label"`
}

// Build assembles a report from a merged reading.
func Build(r *source.Reading) Report {
	score, label := aqi.RiskScore(r.AQI)
	category := aqi.Category(r.AQI)
	color := aqi.Color(r.AQI)

	rep := Report{
		Location:  r.Location,
		Source:    r.Source,
		AQI:       r.AQI,
		Category:  category,
		Color:     color,
		RiskScore: score,
		RiskLabel: label,
		Gauge: Gauge{
			Fraction: aqi.GaugeFraction(r.AQI),
			Label:    fmt.Sprintf("AQI Level: %d - %s", r.AQI, category),
			Color:    color,
			Ticks:    gaugeTicks,
		},
		Weather:         r.Weather,
		MainPollutant:   mainPollutant(r),
		Pollutants:      pollutantDetails(r.Components),
		Recommendations: aqi.Recommendations(score),
		ObservedAt:      r.ObservedAt,
	}

	if r.Location.HasCoordinates() {
		rep.Marker = Marker{
			Lat:   r.Location.Lat,
			Lon:   r.Location.Lon,
			RGB:   aqi.MarkerRGB(r.AQI),
			Label: fmt.Sprintf("%s: AQI %d", markerName(r.Location), r.AQI),
		}
	}
	return rep
}

func mainPollutant(r *source.Reading) MainPollutant {
	code := aqi.NormalizePollutant(r.MainPollutant)
	if code == "" {
		code = aqi.PM25
	}

	name := aqi.PollutantFullName(code)
	if r.MainPollutant != "" {
		name = aqi.PollutantFullName(r.MainPollutant)
	}

	mp := MainPollutant{
		Code:       code,
		Name:       name,
		Unit:       "μg/m³",
		Effect:     aqi.Effect(code),
		Mitigation: aqi.Mitigation(code),
	}
	if p, ok := aqi.LookupPollutant(code); ok {
		mp.Unit = p.Unit
	}
	if v, ok := r.Components[code]; ok {
		mp.Value = &v
	}
	return mp
}

// pollutantDetails lists measured components in reference table order.
func pollutantDetails(components map[string]float64) []PollutantDetail {
	out := make([]PollutantDetail, 0, len(components))
	for _, p := range aqi.Pollutants() {
		v, ok := components[p.Code]
		if !ok {
			continue
		}
		d := PollutantDetail{
			Pollutant:  p,
			Value:      v,
			LevelColor: aqi.LevelColor(v, p.SafeLevel),
			Effect:     aqi.Effect(p.Code),
			Mitigation: aqi.Mitigation(p.Code),
		}
		if p.SafeLevel > 0 {
			d.PctOfSafe = v / p.SafeLevel * 100
		}
		out = append(out, d)
	}
	return out
}

func markerName(loc location.Location) string {
	if loc.City != "" {
		return loc.City
	}
	return fmt.Sprintf("%.4f, %.4f", loc.Lat, loc.Lon)
}
