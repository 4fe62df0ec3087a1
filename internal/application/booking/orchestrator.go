package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/application/payment"
	"github.com/example/visaslot/internal/domain/visa"
	"github.com/example/visaslot/internal/metrics"
)

const (
	msgFailed    = "Booking failed. Please try again."
	msgCancelled = "Payment was cancelled. You have not been charged."
	msgTimedOut  = "Payment was not confirmed in time. If you were charged, our team will reconcile it."
)

type PaymentInitiator interface {
	Initiate(ctx context.Context, ch payment.Charge) (paymentID string, err error)
}

type Reserver interface {
	BookSlot(ctx context.Context, country visa.CountryCode, paymentID string, at time.Time) (visa.BookingResult, error)
}

// Ledger keeps a durable record of partial failures for reconciliation.
type Ledger interface {
	RecordPartialFailure(ctx context.Context, pf *visa.PartialFailureError) error
}

// History records confirmed bookings, e.g. on the user profile.
type History interface {
	RecordBooking(ctx context.Context, res visa.BookingResult, paymentID string) error
}

// Histories records to every history; all are attempted.
type Histories []History

func (h Histories) RecordBooking(ctx context.Context, res visa.BookingResult, paymentID string) error {
	var errs []error
	for _, x := range h {
		if err := x.RecordBooking(ctx, res, paymentID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Affordance is the UI control that triggered a booking.
type Affordance interface {
	SetBusy(busy bool)
}

type Deps struct {
	Payments PaymentInitiator
	Reserver Reserver
	Sink     Sink
	Ledger   Ledger  // optional
	History  History // optional
	Log      zerolog.Logger
}

type Config struct {
	AmountMinor        int64
	Currency           string
	ReservationTimeout time.Duration
	Retention          time.Duration
}

type Status struct {
	ID        string              `json:"id"`
	Country   visa.CountryCode    `json:"country"`
	State     visa.BookingState   `json:"state"`
	Kind      Kind                `json:"kind,omitempty"`
	Message   string              `json:"message,omitempty"`
	Result    *visa.BookingResult `json:"result,omitempty"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

type run struct {
	req    visa.BookingRequest
	status Status
}

// Orchestrator sequences payment, reservation and notification for each
// booking request. At most one run is active per triggering control.
type Orchestrator struct {
	d   Deps
	cfg Config
	now func() time.Time

	mu     sync.Mutex
	active map[string]string // control key -> request id
	runs   map[string]*run

	wg sync.WaitGroup
}

func New(d Deps, cfg Config) *Orchestrator {
	if cfg.ReservationTimeout <= 0 {
		cfg.ReservationTimeout = 20 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}
	return &Orchestrator{
		d:      d,
		cfg:    cfg,
		now:    time.Now,
		active: map[string]string{},
		runs:   map[string]*run{},
	}
}

func (o *Orchestrator) NewRequest(country visa.CountryCode, controlID string) visa.BookingRequest {
	return visa.BookingRequest{
		ID:        uuid.NewString(),
		Country:   country,
		ControlID: controlID,
		CreatedAt: o.now().UTC(),
	}
}

// Book runs one booking to its terminal state.
func (o *Orchestrator) Book(ctx context.Context, req visa.BookingRequest, aff Affordance) (visa.BookingResult, error) {
	if err := o.acquire(req); err != nil {
		return visa.BookingResult{}, err
	}
	return o.run(ctx, req, aff)
}

// Submit registers req synchronously and runs it in the background.
func (o *Orchestrator) Submit(ctx context.Context, req visa.BookingRequest, aff Affordance) error {
	if err := o.acquire(req); err != nil {
		return err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _ = o.run(ctx, req, aff)
	}()
	return nil
}

// Wait blocks until every submitted run has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) Status(id string) (Status, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pruneLocked()
	r, ok := o.runs[id]
	if !ok {
		return Status{}, false
	}
	return r.status, true
}

func (o *Orchestrator) acquire(req visa.BookingRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pruneLocked()

	key := req.Key()
	if id, busy := o.active[key]; busy {
		return fmt.Errorf("%w: control %s (request %s)", visa.ErrBookingInProgress, key, id)
	}
	if _, dup := o.runs[req.ID]; dup {
		return fmt.Errorf("%w: request %s", visa.ErrBookingInProgress, req.ID)
	}
	o.active[key] = req.ID
	o.runs[req.ID] = &run{req: req, status: Status{
		ID:        req.ID,
		Country:   req.Country,
		State:     visa.StateIdle,
		UpdatedAt: o.now(),
	}}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, req visa.BookingRequest, aff Affordance) (visa.BookingResult, error) {
	started := o.now()
	log := o.d.Log.With().Str("request_id", req.ID).Str("country", string(req.Country)).Logger()

	if aff != nil {
		aff.SetBusy(true)
		defer aff.SetBusy(false)
	}
	defer o.release(req)

	o.transition(req.ID, visa.StateAwaitingPayment)
	paymentID, err := o.d.Payments.Initiate(ctx, payment.Charge{
		Reference:   req.ID,
		Country:     req.Country,
		AmountMinor: o.cfg.AmountMinor,
		Currency:    o.cfg.Currency,
	})
	if err != nil {
		outcome, msg := "payment_failed", msgFailed
		switch {
		case errors.Is(err, visa.ErrPaymentTimedOut):
			outcome, msg = "payment_timed_out", msgTimedOut
		case errors.Is(err, visa.ErrPaymentCancelled):
			outcome, msg = "payment_cancelled", msgCancelled
		}
		log.Warn().Err(err).Msg("payment did not complete")
		o.finish(ctx, req, visa.StateFailed, Notification{Kind: KindFailed, Message: msg}, outcome, started)
		return visa.BookingResult{}, err
	}

	o.transition(req.ID, visa.StateAwaitingReservation)
	// The payment is captured from here on: shutdown must not abort the reservation.
	resCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ReservationTimeout)
	defer cancel()

	res, err := o.d.Reserver.BookSlot(resCtx, req.Country, paymentID, o.now())
	if err != nil {
		pf := &visa.PartialFailureError{RequestID: req.ID, Country: req.Country, PaymentID: paymentID, Err: err}
		log.Error().Err(err).Str("payment_id", paymentID).Msg("reservation failed after payment")
		if o.d.Ledger != nil {
			if lerr := o.d.Ledger.RecordPartialFailure(context.WithoutCancel(ctx), pf); lerr != nil {
				log.Error().Err(lerr).Str("payment_id", paymentID).Msg("reconciliation record failed")
			}
		}
		o.finish(ctx, req, visa.StateFailed, Notification{
			Kind:      KindPartial,
			PaymentID: paymentID,
			Message: fmt.Sprintf("Payment received but the %s slot could not be reserved. Reference %s; our team will reconcile it.",
				req.Country, paymentID),
		}, "partial_failure", started)
		return visa.BookingResult{}, pf
	}

	if o.d.History != nil {
		if herr := o.d.History.RecordBooking(context.WithoutCancel(ctx), res, paymentID); herr != nil {
			log.Warn().Err(herr).Msg("booking history update failed")
		}
	}
	o.finish(ctx, req, visa.StateConfirmed, Notification{
		Kind:      KindSuccess,
		PaymentID: paymentID,
		Result:    &res,
		Message:   successMessage(res),
	}, "confirmed", started)
	return res, nil
}

func successMessage(res visa.BookingResult) string {
	msg := fmt.Sprintf("Success! %s slot booked", res.Country)
	if !res.Date.IsZero() {
		msg += " for " + res.Date.Format("2 Jan 2006")
	}
	if res.SlotID == "" {
		return msg + ". Confirmation details will follow."
	}
	return msg + ". Slot ID: " + res.SlotID
}

func (o *Orchestrator) transition(id string, to visa.BookingState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.runs[id]
	if !ok {
		return
	}
	next, err := r.status.State.Next(to)
	if err != nil {
		o.d.Log.Error().Err(err).Str("request_id", id).Msg("booking state machine")
		return
	}
	r.status.State = next
	r.status.UpdatedAt = o.now()
}

func (o *Orchestrator) finish(ctx context.Context, req visa.BookingRequest, to visa.BookingState, n Notification, outcome string, started time.Time) {
	o.transition(req.ID, to)

	n.RequestID = req.ID
	n.Country = req.Country
	n.At = o.now().UTC()

	o.mu.Lock()
	if r, ok := o.runs[req.ID]; ok {
		r.status.Kind = n.Kind
		r.status.Message = n.Message
		r.status.Result = n.Result
	}
	o.mu.Unlock()

	metrics.RecordBookingOutcome(outcome, o.now().Sub(started).Seconds())
	if o.d.Sink != nil {
		o.d.Sink.Notify(context.WithoutCancel(ctx), n)
	}
}

func (o *Orchestrator) release(req visa.BookingRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[req.Key()] == req.ID {
		delete(o.active, req.Key())
	}
}

func (o *Orchestrator) pruneLocked() {
	cutoff := o.now().Add(-o.cfg.Retention)
	for id, r := range o.runs {
		if r.status.State.Terminal() && r.status.UpdatedAt.Before(cutoff) {
			delete(o.runs, id)
		}
	}
}
