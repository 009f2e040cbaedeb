// Package telegram implements a Telegram Bot API notifier
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ballast/internal/core"
)

const defaultBaseURL = "https://api.telegram.org"

// Telegram delivers events through the Bot API sendMessage method
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return NewWithBaseURL(botToken, chatID, defaultBaseURL)
}

// NewWithBaseURL points the notifier at an alternative API host (tests).
func NewWithBaseURL(botToken, chatID, baseURL string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Notify(ctx context.Context, event core.Event) error {
	return t.sendMessage(ctx, formatEvent(event))
}

func formatEvent(event core.Event) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s *%s*\n", eventEmoji(event.Type), event.Title))

	if event.Symbol != "" {
		sb.WriteString(fmt.Sprintf("💰 %s\n", event.Symbol))
	}
	if event.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(event.Body)
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n⏰ %s", event.Time.Format("2006-01-02 15:04:05")))

	return sb.String()
}

func eventEmoji(t core.EventType) string {
	switch t {
	case core.EventTrade:
		return "📊"
	case core.EventReport:
		return "📋"
	case core.EventCriteriaFailed:
		return "⚠️"
	default:
		return "🔔"
	}
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return core.WrapError(core.ErrNotifierFailed,
			fmt.Errorf("telegram: marshaling payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return core.WrapError(core.ErrNotifierFailed,
			fmt.Errorf("telegram: creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrNotifierFailed,
			fmt.Errorf("telegram: sending message: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return core.WrapError(core.ErrNotifierFailed,
			fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result))
	}

	return nil
}
