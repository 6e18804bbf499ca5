package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloudgov-backend/internal/domain"
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	resp, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d: %s", res.StatusCode, string(resp))
	}
	return nil
}

type chatConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

// ChatSender posts the alert message to a Slack-compatible incoming
// webhook.
type ChatSender struct {
	HTTP *http.Client
}

func NewChatSender() *ChatSender {
	return &ChatSender{HTTP: newHTTPClient()}
}

func (s *ChatSender) Send(ctx context.Context, config json.RawMessage, event domain.Event) error {
	var cfg chatConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("chat config: %w", err)
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("chat config: webhookUrl missing")
	}
	return postJSON(ctx, s.HTTP, cfg.WebhookURL, map[string]any{"text": event.Message})
}

type webhookConfig struct {
	URL string `json:"url"`
}

// WebhookSender posts the full event to a generic endpoint.
type WebhookSender struct {
	HTTP *http.Client
}

func NewWebhookSender() *WebhookSender {
	return &WebhookSender{HTTP: newHTTPClient()}
}

func (s *WebhookSender) Send(ctx context.Context, config json.RawMessage, event domain.Event) error {
	var cfg webhookConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if cfg.URL == "" {
		return fmt.Errorf("webhook config: url missing")
	}
	return postJSON(ctx, s.HTTP, cfg.URL, event)
}
