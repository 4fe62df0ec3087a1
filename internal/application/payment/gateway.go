package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/domain/visa"
)

const DefaultTimeout = 10 * time.Minute

// Checkout is the descriptor handed to the payment widget.
type Checkout struct {
	Reference      string           `json:"reference"`
	Country        visa.CountryCode `json:"country"`
	Key            string           `json:"key"`
	AmountMinor    int64            `json:"amount"`
	Currency       string           `json:"currency"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Image          string           `json:"image,omitempty"`
	PrefillName    string           `json:"prefillName,omitempty"`
	PrefillContact string           `json:"prefillContact,omitempty"`
	ThemeColor     string           `json:"themeColor,omitempty"`
	OrderID        string           `json:"orderId,omitempty"`
}

// Callbacks are invoked by the widget. Only the first call settles the payment;
// OnSuccess reports whether it did.
type Callbacks struct {
	OnSuccess func(paymentID string) bool
	OnFailure func(reason string)
	OnDismiss func(reason string)
}

// Widget is the external payment surface. Open must not block on the user;
// the returned close func releases the session.
type Widget interface {
	Open(ctx context.Context, c Checkout, cb Callbacks) (close func(), err error)
}

type Merchant struct {
	Key            string
	Name           string
	Image          string
	ThemeColor     string
	PrefillName    string
	PrefillContact string
}

type Charge struct {
	Reference   string
	Country     visa.CountryCode
	AmountMinor int64
	Currency    string
}

type Gateway struct {
	widget   Widget
	merchant Merchant
	timeout  time.Duration
	log      zerolog.Logger
}

func NewGateway(w Widget, m Merchant, timeout time.Duration, log zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{widget: w, merchant: m, timeout: timeout, log: log}
}

// Initiate opens the widget and waits for its verdict. A dismissed widget, the
// timeout, or ctx cancellation resolve to visa.ErrPaymentCancelled; a widget
// failure resolves to visa.ErrPaymentFailed.
func (g *Gateway) Initiate(ctx context.Context, ch Charge) (string, error) {
	out := g.Outcome(ctx, ch)
	return out.PaymentID, out.Err()
}

func (g *Gateway) Outcome(ctx context.Context, ch Charge) visa.PaymentOutcome {
	settled := make(chan visa.PaymentOutcome, 1)
	var once sync.Once
	settle := func(o visa.PaymentOutcome) (won bool) {
		once.Do(func() {
			settled <- o
			won = true
		})
		return won
	}

	checkout := Checkout{
		Reference:      ch.Reference,
		Country:        ch.Country,
		Key:            g.merchant.Key,
		AmountMinor:    ch.AmountMinor,
		Currency:       ch.Currency,
		Name:           g.merchant.Name,
		Description:    fmt.Sprintf("%s Visa Slot Booking", ch.Country),
		Image:          g.merchant.Image,
		PrefillName:    g.merchant.PrefillName,
		PrefillContact: g.merchant.PrefillContact,
		ThemeColor:     g.merchant.ThemeColor,
	}

	closeFn, err := g.widget.Open(ctx, checkout, Callbacks{
		OnSuccess: func(id string) bool {
			if id == "" {
				settle(visa.PaymentFailure("empty payment id"))
				return false
			}
			return settle(visa.PaymentSuccess(id))
		},
		OnFailure: func(reason string) { settle(visa.PaymentFailure(reason)) },
		OnDismiss: func(reason string) { settle(visa.PaymentCancel(reason)) },
	})
	if err != nil {
		g.log.Error().Err(err).Str("reference", ch.Reference).Msg("payment widget open failed")
		return visa.PaymentFailure(err.Error())
	}
	defer closeFn()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case o := <-settled:
		return o
	case <-timer.C:
		settle(visa.PaymentTimeout("payment timed out"))
	case <-ctx.Done():
		settle(visa.PaymentTimeout(ctx.Err().Error()))
	}
	// A callback may have won the race against the timer.
	return <-settled
}
