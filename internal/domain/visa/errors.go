package visa

import (
	"errors"
	"fmt"
)

var (
	ErrTransientFetch    = errors.New("slot fetch failed")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrPaymentCancelled  = errors.New("payment cancelled")
	ErrReservationFailed = errors.New("reservation failed")
	ErrProfileCorrupt    = errors.New("profile corrupt")
	ErrBookingInProgress = errors.New("booking already in progress")
	ErrLateCapture       = errors.New("payment captured after checkout settled")

	// ErrPaymentTimedOut is a cancellation where the widget never answered, so
	// a capture may still arrive later.
	ErrPaymentTimedOut = fmt.Errorf("%w: not confirmed in time", ErrPaymentCancelled)
)

// PartialFailureError reports a captured payment whose reservation did not go through.
// It needs manual reconciliation.
type PartialFailureError struct {
	RequestID string
	Country   CountryCode
	PaymentID string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("payment %s captured but %s slot not reserved: %v", e.PaymentID, e.Country, e.Err)
}

func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrReservationFailed, e.Err}
}

func IsPartialFailure(err error) bool {
	var pf *PartialFailureError
	return errors.As(err, &pf)
}
