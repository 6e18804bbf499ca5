package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/smtp"

	"cloudgov-backend/internal/domain"
)

type emailConfig struct {
	To string `json:"to"`
}

// EmailSender relays alert mail through a plain SMTP endpoint. The
// whole session runs under the caller's context deadline so a stalled
// relay cannot block a dispatch.
type EmailSender struct {
	Addr string
	From string
}

func NewEmailSender(cfg SMTPConfig) *EmailSender {
	return &EmailSender{Addr: cfg.Addr, From: cfg.From}
}

func (s *EmailSender) Send(ctx context.Context, config json.RawMessage, event domain.Event) error {
	var cfg emailConfig
	if err := json.Unmarshal(config, &cfg); err != nil {
		return fmt.Errorf("email config: %w", err)
	}
	if cfg.To == "" {
		return fmt.Errorf("email config: recipient missing")
	}
	body := fmt.Sprintf("To: %s\r\nSubject: Alert: %s\r\n\r\nTriggered at %s\r\nCurrent value: %.2f\r\nThreshold: %.2f\r\n",
		cfg.To, event.Message, event.TriggeredAt.Format("2006-01-02 15:04:05 UTC"),
		event.CurrentValue, event.ThresholdValue)

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("smtp deadline: %w", err)
		}
	}

	host, _, err := net.SplitHostPort(s.Addr)
	if err != nil {
		host = s.Addr
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()
	if err := client.Mail(s.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(cfg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(body)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}
