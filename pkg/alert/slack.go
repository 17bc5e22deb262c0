package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{client: newHTTPClient(), webhookURL: webhookURL}
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackMessage struct {
	Text   string       `json:"text"` // notification fallback
	Blocks []slackBlock `json:"blocks"`
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(slackPayload(n))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	if err := post(ctx, s.client, s.webhookURL, body, nil); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

func slackPayload(n *Notification) slackMessage {
	fields := []slackText{
		{Type: "mrkdwn", Text: fmt.Sprintf("*AQI*\n%d (%s)", n.AQI, n.Category)},
		{Type: "mrkdwn", Text: fmt.Sprintf("*Asthma risk*\n%d/5, was %d/5", n.RiskScore, n.PreviousScore)},
	}
	if n.MainPollutant != "" {
		fields = append(fields, slackText{Type: "mrkdwn", Text: "*Main pollutant*\n" + n.MainPollutant})
	}

	msg := slackMessage{
		Text: n.Title,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: "😷 " + n.Title}},
			{Type: "section", Fields: fields},
		},
	}

	if recs := limit(n.Recommendations, 5); len(recs) > 0 {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "• " + strings.Join(recs, "\n• ")},
		})
	}
	msg.Blocks = append(msg.Blocks, slackBlock{
		Type: "context",
		Elements: []slackText{{
			Type: "mrkdwn",
			Text: fmt.Sprintf("%s · %s · %s", place(n), n.Source, n.ObservedAt.Format("2 Jan 15:04 MST")),
		}},
	})
	return msg
}
