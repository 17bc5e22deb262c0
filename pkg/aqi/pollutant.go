package aqi

import "strings"

// Canonical pollutant codes, matching OpenWeather component keys.
const (
	CO   = "co"
	NO   = "no"
	NO2  = "no2"
	O3   = "o3"
	SO2  = "so2"
	PM25 = "pm2_5"
	PM10 = "pm10"
	NH3  = "nh3"
)

// Pollutant describes a measured component and its safe concentration.
type Pollutant struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	SafeLevel float64 `json:"safe_level"`
}

const microgramsPerCubicMetre = "μg/m³"

// pollutants is ordered the way detail tables are displayed.
var pollutants = []Pollutant{
	{Code: CO, Name: "Carbon Monoxide (CO)", Unit: microgramsPerCubicMetre, SafeLevel: 10000},
	{Code: NO, Name: "Nitric Oxide (NO)", Unit: microgramsPerCubicMetre, SafeLevel: 30},
	{Code: NO2, Name: "Nitrogen Dioxide (NO₂)", Unit: microgramsPerCubicMetre, SafeLevel: 40},
	{Code: O3, Name: "Ozone (O₃)", Unit: microgramsPerCubicMetre, SafeLevel: 100},
	{Code: SO2, Name: "Sulfur Dioxide (SO₂)", Unit: microgramsPerCubicMetre, SafeLevel: 20},
	{Code: PM25, Name: "PM2.5", Unit: microgramsPerCubicMetre, SafeLevel: 10},
	{Code: PM10, Name: "PM10", Unit: microgramsPerCubicMetre, SafeLevel: 20},
	{Code: NH3, Name: "Ammonia (NH₃)", Unit: microgramsPerCubicMetre, SafeLevel: 100},
}

// Pollutants returns the reference table in display order.
func Pollutants() []Pollutant {
	out := make([]Pollutant, len(pollutants))
	copy(out, pollutants)
	return out
}

// LookupPollutant finds a pollutant by canonical code.
func LookupPollutant(code string) (Pollutant, bool) {
	for _, p := range pollutants {
		if p.Code == code {
			return p, true
		}
	}
	return Pollutant{}, false
}

// aliases maps IQAir (p1, p2, n2, s2) and WAQI (pm25, ...) codes.
var aliases = map[string]string{
	"p1":    PM10,
	"p2":    PM25,
	"n2":    NO2,
	"s2":    SO2,
	"pm25":  PM25,
	"pm2.5": PM25,
	"pm2_5": PM25,
	"pm10":  PM10,
	"o3":    O3,
	"no2":   NO2,
	"so2":   SO2,
	"co":    CO,
}

// NormalizePollutant maps a provider pollutant code to its canonical form.
// It returns "" for codes outside the six main pollutants.
func NormalizePollutant(code string) string {
	return aliases[strings.ToLower(strings.TrimSpace(code))]
}

var fullNames = map[string]string{
	PM10: "PM10 (Inhalable Particulate Matter)",
	PM25: "PM2.5 (Fine Particulate Matter)",
	O3:   "Ozone (O₃)",
	NO2:  "Nitrogen Dioxide (NO₂)",
	SO2:  "Sulfur Dioxide (SO₂)",
	CO:   "Carbon Monoxide (CO)",
}

// PollutantFullName returns the long name of a main pollutant.
// Unknown codes are returned unchanged.
func PollutantFullName(code string) string {
	if name, ok := fullNames[NormalizePollutant(code)]; ok {
		return name
	}
	return code
}

var effects = map[string]string{
	PM10: "PM10 particles can enter the lungs, irritate and damage lung tissue, and worsen asthma symptoms. These particles typically come from dust, pollen, and mold.",
	PM25: "PM2.5 is one of the most dangerous air pollutants. These tiny particles can penetrate deep into lungs and bloodstream, causing severe asthma attacks and other respiratory problems.",
	O3:   "Ozone irritates lung tissues, decreases lung function, and increases the frequency and severity of asthma attacks. It can make asthma patients more sensitive to allergens.",
	NO2:  "Nitrogen dioxide irritates airways, causing inflammation, reducing resistance to respiratory infections, and particularly affects children with asthma.",
	SO2:  "Sulfur dioxide irritates the eyes, nose, and throat, potentially triggering asthma attacks and other respiratory problems, especially in people with existing asthma.",
	CO:   "Carbon monoxide reduces the blood's ability to carry oxygen, potentially worsening symptoms in asthma patients, especially those with pre-existing cardiovascular conditions.",
}

var mitigations = map[string]string{
	PM10: "On days with high PM10 levels, minimize outdoor activities, keep indoor air fresh, and use air purifiers.",
	PM25: "Use high-efficiency air purifiers, keep windows and doors closed, reduce outdoor activities, especially in areas with heavy traffic.",
	O3:   "Avoid outdoor activities during afternoons and evenings when ozone levels are highest, especially intense exercise.",
	NO2:  "Avoid areas with heavy traffic, maintain indoor air circulation (unless outdoor pollution is severe), and reduce use of gas appliances.",
	SO2:  "In areas with high sulfur dioxide, limit outdoor time, use air purifiers, and maintain adequate hydration.",
	CO:   "Ensure gas appliances are working properly, install carbon monoxide detectors, and maintain good ventilation.",
}

const (
	noEffectInfo     = "No information available for this pollutant"
	noMitigationInfo = "No mitigation information available for this pollutant"
)

// Effect describes how a pollutant affects asthma.
func Effect(code string) string {
	if s, ok := effects[canonical(code)]; ok {
		return s
	}
	return noEffectInfo
}

// Mitigation describes how to reduce exposure to a pollutant.
func Mitigation(code string) string {
	if s, ok := mitigations[canonical(code)]; ok {
		return s
	}
	return noMitigationInfo
}

func canonical(code string) string {
	if c := NormalizePollutant(code); c != "" {
		return c
	}
	return code
}

// LevelColor colours a concentration relative to its safe level.
func LevelColor(value, safe float64) string {
	if safe <= 0 {
		return "#8F3F97"
	}
	pct := value / safe * 100
	switch {
	case pct <= 50:
		return "#00E400"
	case pct <= 100:
		return "#FFFF00"
	case pct <= 150:
		return "#FF7E00"
	case pct <= 200:
		return "#FF0000"
	default:
		return "#8F3F97"
	}
}
