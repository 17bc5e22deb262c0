package source

import "strings"

// DefaultAirKeywords is the base set used to pick air quality advisories
// out of general news feeds. Malay terms cover local agency bulletins.
var DefaultAirKeywords = []string{
	"air quality", "air pollution", "air pollutant", "AQI", "API reading",
	"haze", "jerebu", "smog", "smoke", "open burning", "forest fire",
	"transboundary", "hotspot", "PM2.5", "PM10", "particulate",
	"ozone", "nitrogen dioxide", "sulphur dioxide", "sulfur dioxide",
	"carbon monoxide", "kualiti udara", "pencemaran udara",
	"asthma", "respiratory", "inhaler", "N95",
}

// Filter holds keyword lists for advisory matching.
type Filter struct {
	keywords []string
	exclude  []string
}

// NewFilter creates a filter with default air quality keywords plus extras.
func NewFilter(extraKeywords, excludeKeywords []string) *Filter {
	keywords := make([]string, len(DefaultAirKeywords))
	copy(keywords, DefaultAirKeywords)
	keywords = append(keywords, extraKeywords...)

	for i, kw := range keywords {
		keywords[i] = strings.ToLower(kw)
	}

	exclude := make([]string, len(excludeKeywords))
	for i, kw := range excludeKeywords {
		exclude[i] = strings.ToLower(kw)
	}

	return &Filter{keywords: keywords, exclude: exclude}
}

// Matches returns true if text mentions air quality and none of the
// excluded keywords.
func (f *Filter) Matches(text string) bool {
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
