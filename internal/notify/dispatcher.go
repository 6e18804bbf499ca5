package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"cloudgov-backend/internal/domain"
)

// Sender delivers one rendered notification to a channel of its type.
// Config is the channel-specific blob from the rule.
type Sender interface {
	Send(ctx context.Context, config json.RawMessage, event domain.Event) error
}

// Dispatcher fans a triggered event out to every channel configured on
// its rule. Delivery is best effort: the event is already durable when
// Dispatch runs, a failing channel is logged and the rest still get the
// message.
type Dispatcher struct {
	senders map[string]Sender
	log     *slog.Logger
	timeout time.Duration
}

func NewDispatcher(senders map[string]Sender, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{senders: senders, log: logger, timeout: timeout}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event domain.Event, channels []domain.Channel) {
	for _, channel := range channels {
		sender, ok := d.senders[channel.Type]
		if !ok {
			d.log.Warn("unknown notification channel type",
				slog.String("type", channel.Type),
				slog.String("event_id", event.ID))
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sender.Send(sendCtx, channel.Config, event)
		cancel()
		if err != nil {
			d.log.Warn("notification delivery failed",
				slog.String("type", channel.Type),
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()))
		}
	}
}
