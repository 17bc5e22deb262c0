package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elonfeng/aqiwatch/pkg/aqi"
	"github.com/elonfeng/aqiwatch/pkg/source"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	State           string    `json:"state"`
	City            string    `json:"city"`
	AQI             int       `json:"aqi"`
	Category        string    `json:"category"`
	Color           string    `json:"color"`
	RiskScore       int       `json:"risk_score"`
	RiskLabel       string    `json:"risk_label"`
	PreviousScore   int       `json:"previous_score"`
	MainPollutant   string    `json:"main_pollutant,omitempty"`
	Recommendations []string  `json:"recommendations"`
	Source          string    `json:"source"`
	ObservedAt      time.Time `json:"observed_at"`
}

// NewNotification builds the alert for a reading that crossed into a
// higher risk score than previousScore.
func NewNotification(r *source.Reading, previousScore int) *Notification {
	score, label := aqi.RiskScore(r.AQI)
	category := aqi.Category(r.AQI)

	n := &Notification{
		Body:            fmt.Sprintf("Air quality is %s. Asthma risk score %d/5.", category, score),
		State:           r.Location.State,
		City:            r.Location.City,
		AQI:             r.AQI,
		Category:        category,
		Color:           aqi.Color(r.AQI),
		RiskScore:       score,
		RiskLabel:       label,
		PreviousScore:   previousScore,
		Recommendations: aqi.Recommendations(score).Items,
		Source:          string(r.Source),
		ObservedAt:      r.ObservedAt,
	}
	n.Title = fmt.Sprintf("%s: %s (AQI %d)", place(n), label, r.AQI)
	if r.MainPollutant != "" {
		n.MainPollutant = aqi.PollutantFullName(r.MainPollutant)
		n.Body += fmt.Sprintf(" Main pollutant: %s.", n.MainPollutant)
	}
	return n
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Names lists the configured destinations.
func (m *Manager) Names() []string {
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close releases notifiers that hold connections.
func (m *Manager) Close() error {
	var errs []error
	for _, notifier := range m.notifiers {
		if c, ok := notifier.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", notifier.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// limit returns at most n items.
func limit(items []string, n int) []string {
	if len(items) < n {
		return items
	}
	return items[:n]
}
