package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{client: newHTTPClient(), webhookURL: webhookURL}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	ts := n.ObservedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	embed := discordEmbed{
		Title:       "😷 " + n.Title,
		Description: n.Body,
		Color:       embedColor(n.Color),
		Fields: []discordField{
			{Name: "AQI", Value: fmt.Sprintf("%d (%s)", n.AQI, n.Category), Inline: true},
			{Name: "Risk", Value: fmt.Sprintf("%d/5", n.RiskScore), Inline: true},
		},
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
	if recs := limit(n.Recommendations, 5); len(recs) > 0 {
		embed.Fields = append(embed.Fields, discordField{
			Name:  "What to do",
			Value: "• " + strings.Join(recs, "\n• "),
		})
	}

	body, err := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}
	if err := post(ctx, d.client, d.webhookURL, body, nil); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}

// embedColor converts "#RRGGBB" to the integer Discord expects.
func embedColor(hex string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0xFF6600
	}
	return int(v)
}
