package visa

import "fmt"

type PaymentStatus int

const (
	PaymentSucceeded PaymentStatus = iota
	PaymentFailedStatus
	PaymentCancelledStatus
)

// PaymentOutcome is Success(PaymentID) | Failed(Reason) | Cancelled(Reason).
type PaymentOutcome struct {
	Status    PaymentStatus
	PaymentID string
	Reason    string
	TimedOut  bool
}

func PaymentSuccess(id string) PaymentOutcome {
	return PaymentOutcome{Status: PaymentSucceeded, PaymentID: id}
}

func PaymentFailure(reason string) PaymentOutcome {
	return PaymentOutcome{Status: PaymentFailedStatus, Reason: reason}
}

func PaymentCancel(reason string) PaymentOutcome {
	return PaymentOutcome{Status: PaymentCancelledStatus, Reason: reason}
}

// PaymentTimeout is a cancellation with no verdict from the widget.
func PaymentTimeout(reason string) PaymentOutcome {
	return PaymentOutcome{Status: PaymentCancelledStatus, Reason: reason, TimedOut: true}
}

// Err converts a non-success outcome to its sentinel error; nil on success.
func (o PaymentOutcome) Err() error {
	switch o.Status {
	case PaymentSucceeded:
		return nil
	case PaymentCancelledStatus:
		base := ErrPaymentCancelled
		if o.TimedOut {
			base = ErrPaymentTimedOut
		}
		if o.Reason == "" {
			return base
		}
		return fmt.Errorf("%w: %s", base, o.Reason)
	default:
		if o.Reason == "" {
			return ErrPaymentFailed
		}
		return fmt.Errorf("%w: %s", ErrPaymentFailed, o.Reason)
	}
}
