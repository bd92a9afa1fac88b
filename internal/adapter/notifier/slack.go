package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/ioc-console/internal/adapter/httpclient"
	"github.com/hive-corporation/ioc-console/internal/core/ports"
)

const defaultSlackAPI = "https://slack.com/api"

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SlackNotifier posts Block Kit messages through chat.postMessage.
type SlackNotifier struct {
	botToken    string
	channel     string
	mentionTeam string
	baseURL     string
	httpClient  httpDoer
}

type Option func(*SlackNotifier)

// WithBaseURL points the notifier at a different Slack API root.
func WithBaseURL(u string) Option {
	return func(s *SlackNotifier) { s.baseURL = strings.TrimRight(u, "/") }
}

func NewSlackNotifier(botToken, channel, mentionTeam string, clientCfg httpclient.Config, opts ...Option) *SlackNotifier {
	s := &SlackNotifier{
		botToken:    botToken,
		channel:     channel,
		mentionTeam: mentionTeam,
		baseURL:     defaultSlackAPI,
		httpClient:  httpclient.New(10*time.Second, clientCfg),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.Notifier = (*SlackNotifier)(nil)

// NotifyCriticalIOC sends an alert for a newly reported critical indicator
func (s *SlackNotifier) NotifyCriticalIOC(ctx context.Context, ioc ports.IOCNotification) error {
	payload := SlackMessage{
		Channel: s.channel,
		Blocks:  s.buildCriticalIOCBlocks(ioc),
		Text:    fmt.Sprintf("🚨 Critical IoC reported: %s", ioc.Value),
	}
	return s.sendMessage(ctx, payload)
}

func (s *SlackNotifier) buildCriticalIOCBlocks(ioc ports.IOCNotification) []SlackBlock {
	tags := "none"
	if len(ioc.Tags) > 0 {
		tags = strings.Join(ioc.Tags, ", ")
	}

	footer := fmt.Sprintf("*Tags*: %s\n*Status*: pending review", tags)
	if s.mentionTeam != "" {
		footer += "\n\ncc: " + s.mentionTeam
	}

	return []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: "🚨 Critical IoC Reported",
			},
		},
		{
			Type: "section",
			Fields: []SlackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Value*\n`%s`", ioc.Value)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Type*\n%s", ioc.Type)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Confidence*\n%d/100", ioc.Confidence)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*TLP*\n%s", strings.ToUpper(ioc.TLP))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Reporter*\n%s", ioc.Reporter)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Source*\n%s", ioc.Source)},
			},
		},
		{Type: "divider"},
		{
			Type: "section",
			Text: &SlackText{
				Type: "mrkdwn",
				Text: footer,
			},
		},
		{
			Type: "context",
			Elements: []SlackText{
				{Type: "mrkdwn", Text: "ID: " + ioc.ID},
			},
		},
	}
}

func (s *SlackNotifier) sendMessage(ctx context.Context, msg SlackMessage) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat.postMessage", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.botToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	// chat.postMessage reports most failures in the body with a 200.
	var result slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode Slack response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack API error: %s", result.Error)
	}

	return nil
}

// Slack API structures

type SlackMessage struct {
	Channel string       `json:"channel"`
	Blocks  []SlackBlock `json:"blocks"`
	Text    string       `json:"text"` // Fallback text
}

type SlackBlock struct {
	Type     string      `json:"type"`
	Text     *SlackText  `json:"text,omitempty"`
	Fields   []SlackText `json:"fields,omitempty"`
	Elements []SlackText `json:"elements,omitempty"`
}

type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
