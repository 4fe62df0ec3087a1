// Package events publishes booking outcomes to Kafka for downstream consumers
// (receipts, reconciliation dashboards).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/example/visaslot/internal/application/booking"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
	// MaxAttempts defaults to 3.
	MaxAttempts  int
	WriteTimeout time.Duration
}

type Publisher struct {
	w           MessageWriter
	log         zerolog.Logger
	maxAttempts int
	timeout     time.Duration
	sleep       func(time.Duration)
}

func NewPublisher(cfg Config, log zerolog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return newPublisher(w, cfg, log), nil
}

func newPublisher(w MessageWriter, cfg Config, log zerolog.Logger) *Publisher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Publisher{w: w, log: log, maxAttempts: cfg.MaxAttempts, timeout: cfg.WriteTimeout, sleep: time.Sleep}
}

type message struct {
	Kind      booking.Kind `json:"kind"`
	RequestID string       `json:"requestId"`
	Country   string       `json:"country"`
	PaymentID string       `json:"paymentId,omitempty"`
	SlotID    string       `json:"slotId,omitempty"`
	Date      *time.Time   `json:"date,omitempty"`
	Channel   string       `json:"confirmationChannel,omitempty"`
	At        time.Time    `json:"at"`
}

// Notify implements booking.Sink. Failures are logged, never returned: the
// booking outcome is already decided when a notification is published.
func (p *Publisher) Notify(ctx context.Context, n booking.Notification) {
	m := message{
		Kind:      n.Kind,
		RequestID: n.RequestID,
		Country:   string(n.Country),
		PaymentID: n.PaymentID,
		At:        n.At.UTC(),
	}
	if n.Result != nil {
		m.SlotID = n.Result.SlotID
		m.Channel = n.Result.ConfirmationChannel
		if !n.Result.Date.IsZero() {
			d := n.Result.Date
			m.Date = &d
		}
	}
	if err := p.publish(context.WithoutCancel(ctx), []byte(n.RequestID), m); err != nil {
		p.log.Error().Err(err).Str("request_id", n.RequestID).Msg("publish booking event")
	}
}

func (p *Publisher) publish(ctx context.Context, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, p.timeout)
		lastErr = p.w.WriteMessages(actx, kafka.Message{Key: key, Value: b, Time: time.Now().UTC()})
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt < p.maxAttempts {
			p.sleep(backoff)
			backoff *= 2
		}
	}
	return fmt.Errorf("produce failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *Publisher) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
