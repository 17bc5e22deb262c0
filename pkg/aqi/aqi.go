package aqi

// RiskScore maps a US AQI value to an asthma risk score (1-5) and label.
func RiskScore(aqi int) (int, string) {
	switch {
	case aqi <= 50:
		return 1, "Low Risk"
	case aqi <= 100:
		return 2, "Low-Moderate Risk"
	case aqi <= 150:
		return 3, "Moderate Risk"
	case aqi <= 200:
		return 4, "High-Moderate Risk"
	default:
		return 5, "High Risk"
	}
}

// Category returns the EPA air quality category for an AQI value.
func Category(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// Color returns the hex colour used to draw an AQI value.
func Color(aqi int) string {
	switch {
	case aqi <= 50:
		return "#00E400"
	case aqi <= 100:
		return "#FFFF00"
	case aqi <= 150:
		return "#FF7E00"
	case aqi <= 200:
		return "#FF0000"
	case aqi <= 300:
		return "#8F3F97"
	default:
		return "#7E0023"
	}
}

// MarkerRGB returns the map marker fill colour for an AQI value.
func MarkerRGB(aqi int) [3]uint8 {
	switch {
	case aqi <= 50:
		return [3]uint8{0, 255, 0}
	case aqi <= 100:
		return [3]uint8{255, 255, 0}
	case aqi <= 150:
		return [3]uint8{255, 165, 0}
	case aqi <= 200:
		return [3]uint8{255, 0, 0}
	default:
		return [3]uint8{153, 0, 76}
	}
}

// GaugeMax is the AQI at which the gauge is full.
const GaugeMax = 500

// GaugeFraction returns how full the AQI gauge is, in [0, 1].
func GaugeFraction(aqi int) float64 {
	if aqi <= 0 {
		return 0
	}
	f := float64(aqi) / GaugeMax
	if f > 1 {
		return 1
	}
	return f
}

// Highlight classifies an AQI value for the travel ranking table.
func Highlight(aqi int) string {
	switch {
	case aqi <= 50:
		return "good"
	case aqi <= 100:
		return "moderate"
	default:
		return "poor"
	}
}

// Level is one row of the AQI reference table.
type Level struct {
	Range        string `json:"range"`
	Min          int    `json:"min"`
	Max          int    `json:"max,omitempty"`
	Name         string `json:"level"`
	HealthImpact string `json:"health_impact"`
	AsthmaRisk   string `json:"asthma_risk"`
}

var levels = []Level{
	{Range: "0-50", Min: 0, Max: 50, Name: "Good",
		HealthImpact: "Air quality is satisfactory, and air pollution poses little or no risk",
		AsthmaRisk:   "Low"},
	{Range: "51-100", Min: 51, Max: 100, Name: "Moderate",
		HealthImpact: "Acceptable air quality, but some pollutants may be a concern for a very small number of sensitive individuals",
		AsthmaRisk:   "Low-Moderate"},
	{Range: "101-150", Min: 101, Max: 150, Name: "Unhealthy for Sensitive Groups",
		HealthImpact: "May affect the health of sensitive groups",
		AsthmaRisk:   "Moderate"},
	{Range: "151-200", Min: 151, Max: 200, Name: "Unhealthy",
		HealthImpact: "Everyone may begin to experience health effects",
		AsthmaRisk:   "High-Moderate"},
	{Range: "201-300", Min: 201, Max: 300, Name: "Very Unhealthy",
		HealthImpact: "Health warnings, everyone may experience more serious health effects",
		AsthmaRisk:   "High"},
	{Range: "301+", Min: 301, Name: "Hazardous",
		HealthImpact: "Health alert, everyone may experience serious health effects",
		AsthmaRisk:   "Very High"},
}

// Levels returns a copy of the AQI reference table.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// Recommendation is the advice block shown for a risk score.
type Recommendation struct {
	Tier  string   `json:"tier"`
	Title string   `json:"title"`
	Items []string `json:"items"`
}

// Recommendations returns asthma advice for a risk score from RiskScore.
func Recommendations(score int) Recommendation {
	switch {
	case score <= 2:
		return Recommendation{
			Tier:  "low",
			Title: "Recommendations for Low Risk Days",
			Items: []string{
				"Carry on with normal daily activities",
				"Carry rescue medication with you",
				"Use controller medications as prescribed",
				"Maintain fresh indoor air quality",
			},
		}
	case score == 3:
		return Recommendation{
			Tier:  "moderate",
			Title: "Recommendations for Moderate Risk Days",
			Items: []string{
				"Reduce prolonged outdoor activities",
				"Avoid intense outdoor exercise",
				"Monitor for changes in symptoms",
				"Ensure rescue medications are readily available",
				"Use air purifiers to improve indoor air quality",
			},
		}
	default:
		return Recommendation{
			Tier:  "high",
			Title: "Recommendations for High Risk Days",
			Items: []string{
				"Stay indoors whenever possible",
				"Keep windows and doors closed, use air purifiers",
				"Avoid outdoor activities",
				"Closely monitor symptoms",
				"Follow medical advice to adjust medication if symptoms worsen",
				"Consider wearing an N95 mask when outdoors",
			},
		}
	}
}
