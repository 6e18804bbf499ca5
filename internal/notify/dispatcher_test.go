package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloudgov-backend/internal/domain"
)

type recordingSender struct {
	calls []json.RawMessage
	err   error
}

func (s *recordingSender) Send(ctx context.Context, config json.RawMessage, event domain.Event) error {
	s.calls = append(s.calls, config)
	return s.err
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() domain.Event {
	return domain.Event{
		ID:             "evt-1",
		RuleID:         "rule-1",
		TenantID:       "tenant-1",
		ThresholdTier:  1000,
		CurrentValue:   1500,
		ThresholdValue: 1000,
		Message:        "Monthly cost alert: COST is 1500.00, crossing threshold of 1000.00",
		Status:         domain.EventActive,
	}
}

func TestDispatchFansOutToAllChannels(t *testing.T) {
	email := &recordingSender{}
	chat := &recordingSender{}
	d := NewDispatcher(map[string]Sender{"email": email, "chat": chat}, silentLogger(), time.Second)

	d.Dispatch(context.Background(), sampleEvent(), []domain.Channel{
		{Type: "email", Config: []byte(`{"to":"ops@example.com"}`)},
		{Type: "chat", Config: []byte(`{"webhookUrl":"https://chat.example.com/hook"}`)},
	})
	if len(email.calls) != 1 || len(chat.calls) != 1 {
		t.Fatalf("expected one send per channel, got email=%d chat=%d", len(email.calls), len(chat.calls))
	}
}

func TestDispatchFailureDoesNotBlockOtherChannels(t *testing.T) {
	failing := &recordingSender{err: errors.New("smtp refused")}
	healthy := &recordingSender{}
	d := NewDispatcher(map[string]Sender{"email": failing, "webhook": healthy}, silentLogger(), time.Second)

	d.Dispatch(context.Background(), sampleEvent(), []domain.Channel{
		{Type: "email", Config: []byte(`{}`)},
		{Type: "webhook", Config: []byte(`{"url":"https://example.com"}`)},
	})
	if len(healthy.calls) != 1 {
		t.Fatalf("a failing channel must not block the rest, got %d sends", len(healthy.calls))
	}
}

func TestDispatchSkipsUnknownChannelType(t *testing.T) {
	known := &recordingSender{}
	d := NewDispatcher(map[string]Sender{"email": known}, silentLogger(), time.Second)

	d.Dispatch(context.Background(), sampleEvent(), []domain.Channel{
		{Type: "pager", Config: []byte(`{}`)},
		{Type: "email", Config: []byte(`{}`)},
	})
	if len(known.calls) != 1 {
		t.Fatalf("known channel should still receive the event, got %d", len(known.calls))
	}
}

func TestChatSenderPostsMessageText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewChatSender()
	cfg := fmt.Sprintf(`{"webhookUrl":%q}`, srv.URL)
	if err := sender.Send(context.Background(), []byte(cfg), sampleEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, "crossing threshold") {
		t.Fatalf("expected the alert message, got %q", text)
	}
}

func TestWebhookSenderPostsFullEvent(t *testing.T) {
	var got domain.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewWebhookSender()
	cfg := fmt.Sprintf(`{"url":%q}`, srv.URL)
	if err := sender.Send(context.Background(), []byte(cfg), sampleEvent()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ID != "evt-1" || got.CurrentValue != 1500 {
		t.Fatalf("expected the full event payload, got %+v", got)
	}
}

func TestWebhookSenderSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewWebhookSender()
	cfg := fmt.Sprintf(`{"url":%q}`, srv.URL)
	err := sender.Send(context.Background(), []byte(cfg), sampleEvent())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected a 502 error, got %v", err)
	}
}

func TestChatSenderRejectsMissingURL(t *testing.T) {
	sender := NewChatSender()
	if err := sender.Send(context.Background(), []byte(`{}`), sampleEvent()); err == nil {
		t.Fatalf("expected an error for a missing webhookUrl")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.yaml")
	content := "smtp:\n  addr: mail.internal:587\n  from: alerts@corp.example.com\nsendTimeoutSeconds: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SMTP.Addr != "mail.internal:587" || cfg.SMTP.From != "alerts@corp.example.com" {
		t.Fatalf("unexpected smtp config: %+v", cfg.SMTP)
	}
	if cfg.SendTimeoutSec != 5 {
		t.Fatalf("unexpected timeout: %d", cfg.SendTimeoutSec)
	}
}

func TestLoadConfigRequiresSMTPAddr(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.yaml")
	if err := os.WriteFile(path, []byte("smtp:\n  addr: \"\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected an error for a blank smtp addr")
	}
}
