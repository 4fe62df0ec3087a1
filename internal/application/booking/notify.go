package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/domain/visa"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindFailed  Kind = "failed"
	// KindPartial means the payment was captured but no slot is held.
	KindPartial Kind = "partial_failure"
)

type Notification struct {
	Kind      Kind                `json:"kind"`
	RequestID string              `json:"requestId"`
	Country   visa.CountryCode    `json:"country"`
	PaymentID string              `json:"paymentId,omitempty"`
	Message   string              `json:"message"`
	Result    *visa.BookingResult `json:"result,omitempty"`
	At        time.Time           `json:"at"`
}

// Sink receives exactly one terminal notification per booking run.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Sinks fans a notification out to every sink in order.
type Sinks []Sink

func (s Sinks) Notify(ctx context.Context, n Notification) {
	for _, sink := range s {
		if sink != nil {
			sink.Notify(ctx, n)
		}
	}
}

type LogSink struct{ Log zerolog.Logger }

func (l LogSink) Notify(_ context.Context, n Notification) {
	ev := l.Log.Info()
	switch n.Kind {
	case KindFailed:
		ev = l.Log.Warn()
	case KindPartial:
		ev = l.Log.Error()
	}
	ev = ev.Str("kind", string(n.Kind)).Str("request_id", n.RequestID).Str("country", string(n.Country))
	if n.PaymentID != "" {
		ev = ev.Str("payment_id", n.PaymentID)
	}
	if n.Result != nil {
		ev = ev.Str("slot_id", n.Result.SlotID)
	}
	ev.Msg(n.Message)
}
