// Package notifier pushes review-worthy learning events to a Slack
// incoming webhook.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/harrier/internal/core/ports"
)

type WebhookNotifier struct {
	webhookURL  string
	mentionTeam string
	httpClient  *http.Client
}

func NewWebhookNotifier(webhookURL, mentionTeam string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		webhookURL:  webhookURL,
		mentionTeam: mentionTeam,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NotifyFeedbackConflict sends a formatted alert when analyst feedback
// disagrees with established consensus.
func (n *WebhookNotifier) NotifyFeedbackConflict(alert ports.FeedbackConflict) error {
	blocks := n.buildConflictBlocks(alert)

	payload := slackMessage{
		Blocks: blocks,
		Text:   fmt.Sprintf("Feedback conflict on %s needs review", alert.IOCValue),
	}

	return n.sendMessage(payload)
}

// NotifyHighFalsePositiveRisk sends an alert for indicators the model
// flags as probable false positives.
func (n *WebhookNotifier) NotifyHighFalsePositiveRisk(alert ports.FalsePositiveRisk) error {
	blocks := n.buildRiskBlocks(alert)

	payload := slackMessage{
		Blocks: blocks,
		Text:   fmt.Sprintf("Probable false positive: %s", alert.IOCValue),
	}

	return n.sendMessage(payload)
}

func (n *WebhookNotifier) buildConflictBlocks(alert ports.FeedbackConflict) []slackBlock {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{
				Type: "plain_text",
				Text: "Feedback Conflict Needs Review",
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Indicator*\n`%s`", alert.IOCValue)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Type*\n%s", alert.IOCType)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Feedback*\n%s", alert.FeedbackType)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Agreement*\n%.0f%%", alert.ValidationScore*100)},
			},
		},
		{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("Submitted by *%s*, disagrees with the validated consensus for this indicator. Feedback ID: `%s`",
					alert.UserID, alert.FeedbackID),
			},
		},
	}

	if n.mentionTeam != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: "cc: " + n.mentionTeam,
			},
		})
	}
	return blocks
}

func (n *WebhookNotifier) buildRiskBlocks(alert ports.FalsePositiveRisk) []slackBlock {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{
				Type: "plain_text",
				Text: "Probable False Positive",
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Indicator*\n`%s`", alert.IOCValue)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Type*\n%s", alert.IOCType)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Probability*\n%.0f%%", alert.Probability*100)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Model Confidence*\n%.0f%%", alert.Confidence*100)},
			},
		},
	}

	if len(alert.Reasoning) > 0 {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: "*Reasoning*\n• " + strings.Join(alert.Reasoning, "\n• "),
			},
		})
	}
	return blocks
}

func (n *WebhookNotifier) sendMessage(msg slackMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	req, err := http.NewRequest("POST", n.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Slack webhook structures

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
	Text   string       `json:"text"` // Fallback text
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
