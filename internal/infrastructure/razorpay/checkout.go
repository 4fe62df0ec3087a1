package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/application/payment"
	"github.com/example/visaslot/internal/domain/visa"
)

// SettledGrace is how long a closed order still matches incoming callbacks.
const SettledGrace = time.Hour

var (
	ErrUnknownSession = errors.New("unknown checkout session")
	ErrBadSignature   = errors.New("payment signature mismatch")
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (Order, error)
}

// Ledger records captures that no booking will use.
type Ledger interface {
	RecordPartialFailure(ctx context.Context, pf *visa.PartialFailureError) error
}

type session struct {
	checkout payment.Checkout
	cb       payment.Callbacks
}

type settledOrder struct {
	reference string
	country   visa.CountryCode
	at        time.Time
}

// Checkout implements payment.Widget on top of Razorpay Checkout. Open creates
// an order and parks the callbacks until the browser reports back through
// Succeed, Fail or Dismiss. Closed orders are remembered for SettledGrace so a
// capture that arrives after the booking gave up is still reconciled.
type Checkout struct {
	orders OrderCreator
	secret []byte
	log    zerolog.Logger
	ledger Ledger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session     // by booking reference
	orderRef map[string]string       // order id -> reference
	settled  map[string]settledOrder // by order id
}

func NewCheckout(orders OrderCreator, secret string, log zerolog.Logger) *Checkout {
	return &Checkout{
		orders:   orders,
		secret:   []byte(secret),
		log:      log,
		now:      time.Now,
		sessions: map[string]*session{},
		orderRef: map[string]string{},
		settled:  map[string]settledOrder{},
	}
}

// SetLedger enables durable records for late captures.
func (c *Checkout) SetLedger(l Ledger) { c.ledger = l }

func (c *Checkout) Open(ctx context.Context, co payment.Checkout, cb payment.Callbacks) (func(), error) {
	order, err := c.orders.CreateOrder(ctx, co.AmountMinor, co.Currency, co.Reference, map[string]string{
		"description": co.Description,
	})
	if err != nil {
		return nil, err
	}
	co.OrderID = order.ID

	c.mu.Lock()
	c.sessions[co.Reference] = &session{checkout: co, cb: cb}
	c.orderRef[order.ID] = co.Reference
	c.mu.Unlock()

	c.log.Info().Str("reference", co.Reference).Str("order_id", order.ID).Msg("checkout opened")
	return func() { c.close(co.Reference) }, nil
}

func (c *Checkout) close(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, so := range c.settled {
		if now.Sub(so.at) > SettledGrace {
			delete(c.settled, id)
		}
	}
	if s, ok := c.sessions[ref]; ok {
		delete(c.orderRef, s.checkout.OrderID)
		delete(c.sessions, ref)
		c.settled[s.checkout.OrderID] = settledOrder{reference: ref, country: s.checkout.Country, at: now}
	}
}

func (c *Checkout) settledByOrder(orderID string) (settledOrder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	so, ok := c.settled[orderID]
	if ok && c.now().Sub(so.at) > SettledGrace {
		return settledOrder{}, false
	}
	return so, ok
}

// Session returns the descriptor the browser needs to open the widget.
func (c *Checkout) Session(ref string) (payment.Checkout, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[ref]
	if !ok {
		return payment.Checkout{}, false
	}
	return s.checkout, true
}

func (c *Checkout) byOrder(orderID string) (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.orderRef[orderID]
	if !ok {
		return nil, false
	}
	s, ok := c.sessions[ref]
	return s, ok
}

// Reference maps a Razorpay order id back to the booking reference.
func (c *Checkout) Reference(orderID string) (string, bool) {
	s, ok := c.byOrder(orderID)
	if !ok {
		return "", false
	}
	return s.checkout.Reference, true
}

// Succeed verifies the checkout signature before resolving the payment. A
// signed capture for an order that is already settled returns ErrLateCapture
// after it has been handed to the ledger.
func (c *Checkout) Succeed(orderID, paymentID, signature string) (string, error) {
	s, live := c.byOrder(orderID)
	var so settledOrder
	if live {
		so = settledOrder{reference: s.checkout.Reference, country: s.checkout.Country}
	} else {
		var ok bool
		if so, ok = c.settledByOrder(orderID); !ok {
			return "", ErrUnknownSession
		}
	}
	if !c.Verify(orderID, paymentID, signature) {
		c.log.Warn().Str("order_id", orderID).Str("payment_id", paymentID).Msg("rejected payment callback with bad signature")
		return "", ErrBadSignature
	}
	if live && s.cb.OnSuccess(paymentID) {
		return so.reference, nil
	}
	return so.reference, c.lateCapture(so, orderID, paymentID)
}

func (c *Checkout) lateCapture(so settledOrder, orderID, paymentID string) error {
	err := fmt.Errorf("%w: order %s", visa.ErrLateCapture, orderID)
	c.log.Error().Str("reference", so.reference).Str("order_id", orderID).Str("payment_id", paymentID).
		Msg("payment captured after checkout settled")
	if c.ledger == nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pf := &visa.PartialFailureError{RequestID: so.reference, Country: so.country, PaymentID: paymentID, Err: err}
	if lerr := c.ledger.RecordPartialFailure(ctx, pf); lerr != nil {
		c.log.Error().Err(lerr).Str("payment_id", paymentID).Msg("reconciliation record failed")
	}
	return err
}

func (c *Checkout) Fail(orderID, reason string) (string, error) {
	s, ok := c.byOrder(orderID)
	if !ok {
		return "", ErrUnknownSession
	}
	if reason == "" {
		reason = "Payment failed"
	}
	s.cb.OnFailure(reason)
	return s.checkout.Reference, nil
}

// Dismiss is the abandonment callback: the user closed the widget.
func (c *Checkout) Dismiss(ref, reason string) error {
	c.mu.Lock()
	s, ok := c.sessions[ref]
	c.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	if reason == "" {
		reason = "checkout dismissed"
	}
	s.cb.OnDismiss(reason)
	return nil
}

// Verify checks razorpay_signature = HMAC-SHA256(order_id|payment_id, key secret).
func (c *Checkout) Verify(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	want := mac.Sum(nil)
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}
