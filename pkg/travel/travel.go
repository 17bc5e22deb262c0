// Package travel ranks cities by predicted AQI for asthma-aware trips.
package travel

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/elonfeng/aqiwatch/pkg/aqi"
	"github.com/elonfeng/aqiwatch/pkg/location"
	"github.com/elonfeng/aqiwatch/pkg/prediction"
)

// Severity is the traveller's asthma severity.
type Severity string

const (
	Mild     Severity = "Mild"
	Moderate Severity = "Moderate"
	Severe   Severity = "Severe"
)

// ErrInvalidSeverity is returned by ParseSeverity for unknown values.
var ErrInvalidSeverity = errors.New("severity must be Mild, Moderate or Severe")

// ParseSeverity accepts any letter case; empty means Mild.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mild":
		return Mild, nil
	case "moderate":
		return Moderate, nil
	case "severe":
		return Severe, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// Advice is the severity-specific guidance shown with a plan.
type Advice struct {
	Level   string `json:"level"` // success, info or warning
	Message string `json:"message"`
}

// AdviceFor returns the guidance for a severity.
func AdviceFor(s Severity) Advice {
	switch s {
	case Severe:
		return Advice{Level: "warning", Message: "High risk: Always carry an inhaler, wear a mask, and avoid high AQI areas."}
	case Moderate:
		return Advice{Level: "info", Message: "Medium risk: Prefer indoor activities and check AQI frequently."}
	default:
		return Advice{Level: "success", Message: "Low risk: Outdoor activities are fine, but avoid pollution hotspots."}
	}
}

var tips = []string{
	"Check the AQI before traveling and avoid high pollution areas.",
	"Carry asthma medication, including an inhaler.",
	"Use air-conditioned transport to reduce dust exposure.",
	"Stay in non-smoking hotels to prevent asthma triggers.",
	"Wear a mask in crowded or polluted areas.",
}

// Tips returns the general asthma travel tips.
func Tips() []string {
	out := make([]string, len(tips))
	copy(out, tips)
	return out
}

// NoDataWarning is set on plans with no matching rows.
const NoDataWarning = "No data available for the selected date, state, or city."

// Query selects the predictions to rank. Date is required; empty state or
// city lists do not restrict.
type Query struct {
	Date     string
	States   []string
	Cities   []string
	Severity Severity
}

// Row is one ranked city.
type Row struct {
	Rank      int    `json:"rank"`
	State     string `json:"state"`
	City      string `json:"city"`
	AQI       int    `json:"aqi"`
	Category  string `json:"category"`
	Highlight string `json:"highlight"`
}

// Plan is a ranked recommendation for one date.
type Plan struct {
	Date     string   `json:"date"`
	Severity Severity `json:"severity"`
	Rows     []Row    `json:"rows"`
	BestCity *Row     `json:"best_city,omitempty"`
	Advice   Advice   `json:"advice"`
	Tips     []string `json:"tips"`
	Warning  string   `json:"warning,omitempty"`
}

// Build filters records by q and ranks them by ascending AQI. Ties are
// broken by state then city so rankings are stable.
func Build(records []prediction.Record, q Query) (*Plan, error) {
	date, err := prediction.ParseDate(q.Date)
	if err != nil {
		return nil, fmt.Errorf("travel date: %w", err)
	}
	severity := q.Severity
	if severity == "" {
		severity = Mild
	}

	states := toSet(q.States)
	cities := toSet(q.Cities)

	var matched []prediction.Record
	for _, r := range records {
		if r.Date != date {
			continue
		}
		if len(states) > 0 && !states[location.Slug(r.State)] {
			continue
		}
		if len(cities) > 0 && !cities[location.Slug(r.City)] {
			continue
		}
		matched = append(matched, r)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.AQI != b.AQI {
			return a.AQI < b.AQI
		}
		if a.State != b.State {
			return a.State < b.State
		}
		return a.City < b.City
	})

	p := &Plan{
		Date:     date,
		Severity: severity,
		Rows:     make([]Row, 0, len(matched)),
		Advice:   AdviceFor(severity),
		Tips:     Tips(),
	}
	for i, r := range matched {
		p.Rows = append(p.Rows, Row{
			Rank:      i + 1,
			State:     r.State,
			City:      r.City,
			AQI:       r.AQI,
			Category:  aqi.Category(r.AQI),
			Highlight: aqi.Highlight(r.AQI),
		})
	}

	if len(p.Rows) == 0 {
		p.Warning = NoDataWarning
		return p, nil
	}
	best := p.Rows[0]
	p.BestCity = &best
	return p, nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[location.Slug(v)] = true
		}
	}
	return set
}
