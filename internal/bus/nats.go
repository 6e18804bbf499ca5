package bus

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Event is the payload on every rule lifecycle subject.
type Event struct {
	RuleID   string `json:"rule_id"`
	TenantID string `json:"tenant_id"`
}

type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

func (p *Publisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}

type Subscriber struct {
	Conn *nats.Conn
	log  *slog.Logger
}

func NewSubscriber(url string, logger *slog.Logger) (*Subscriber, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{Conn: conn, log: logger}, nil
}

func (s *Subscriber) Close() {
	if s.Conn != nil {
		s.Conn.Drain()
		s.Conn.Close()
	}
}

// Subscribe drops malformed payloads with a warning so a misbehaving
// publisher shows up in the logs instead of as silent zero events.
func (s *Subscriber) Subscribe(subject string, handler func(Event)) (*nats.Subscription, error) {
	return s.Conn.Subscribe(subject, func(msg *nats.Msg) {
		evt, err := decodeEvent(msg.Data)
		if err != nil {
			s.log.Warn("dropping malformed bus payload",
				slog.String("subject", subject),
				slog.String("error", err.Error()))
			return
		}
		handler(evt)
	})
}

func decodeEvent(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, err
	}
	return evt, nil
}
