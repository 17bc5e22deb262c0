package insight

import (
	"math"
	"testing"

	"github.com/elonfeng/aqiwatch/pkg/aqi"
	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/source"
)

func TestBuild(t *testing.T) {
	r := &source.Reading{
		Source:        source.SourceIQAir,
		Location:      location.Location{City: "Klang", State: "Selangor", Lat: 3.04, Lon: 101.45},
		AQI:           162,
		MainPollutant: "p2",
		Weather:       &source.Weather{TemperatureC: 32, HumidityPct: 75, WindSpeedMS: 1.5},
		Components: map[string]float64{
			"pm10":  30,
			"pm2_5": 55.5,
			"co":    400,
		},
	}

	rep := Build(r)

	if rep.RiskScore != 4 || rep.RiskLabel != "High-Moderate Risk" {
		t.Fatalf("risk=%d %q", rep.RiskScore, rep.RiskLabel)
	}
	if rep.Category != "Unhealthy" || rep.Color != "#FF0000" {
		t.Fatalf("category=%q color=%q", rep.Category, rep.Color)
	}
	if rep.Gauge.Fraction != 162.0/500 || rep.Gauge.Label != "AQI Level: 162 - Unhealthy" {
		t.Fatalf("gauge=%+v", rep.Gauge)
	}
	if rep.Recommendations.Tier != "high" {
		t.Fatalf("recommendations tier=%q", rep.Recommendations.Tier)
	}

	mp := rep.MainPollutant
	if mp.Code != aqi.PM25 || mp.Name != "PM2.5 (Fine Particulate Matter)" {
		t.Fatalf("main pollutant=%+v", mp)
	}
	if mp.Value == nil || *mp.Value != 55.5 {
		t.Fatalf("main pollutant value=%v", mp.Value)
	}

	wantOrder := []string{aqi.CO, aqi.PM25, aqi.PM10}
	if len(rep.Pollutants) != len(wantOrder) {
		t.Fatalf("pollutants=%d want=%d", len(rep.Pollutants), len(wantOrder))
	}
	for i, code := range wantOrder {
		if rep.Pollutants[i].Code != code {
			t.Fatalf("pollutant %d=%s want=%s", i, rep.Pollutants[i].Code, code)
		}
	}
	pm25 := rep.Pollutants[1]
	if pm25.SafeLevel != 10 || pm25.LevelColor != "#8F3F97" || math.Abs(pm25.PctOfSafe-555) > 1e-9 {
		t.Fatalf("pm2_5 detail=%+v", pm25)
	}
	if rep.Pollutants[0].LevelColor != "#00E400" {
		t.Fatalf("co colour=%q", rep.Pollutants[0].LevelColor)
	}

	if rep.Marker.RGB != [3]uint8{255, 0, 0} || rep.Marker.Lat != 3.04 || rep.Marker.Label != "Klang: AQI 162" {
		t.Fatalf("marker=%+v", rep.Marker)
	}
}

func TestBuildUnknownMainPollutant(t *testing.T) {
	rep := Build(&source.Reading{AQI: 30, MainPollutant: "xyz"})

	if rep.MainPollutant.Code != aqi.PM25 {
		t.Fatalf("fallback code=%q", rep.MainPollutant.Code)
	}
	if rep.MainPollutant.Name != "xyz" {
		t.Fatalf("name=%q", rep.MainPollutant.Name)
	}
	if rep.MainPollutant.Value != nil {
		t.Fatal("value should be absent without components")
	}
	if len(rep.Pollutants) != 0 {
		t.Fatalf("pollutants=%+v", rep.Pollutants)
	}
	if rep.Marker != (Marker{}) {
		t.Fatalf("marker without coordinates=%+v", rep.Marker)
	}
	if rep.Recommendations.Tier != "low" {
		t.Fatalf("tier=%q", rep.Recommendations.Tier)
	}
}
