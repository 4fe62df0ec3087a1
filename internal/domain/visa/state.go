package visa

import "fmt"

type BookingState string

const (
	StateIdle                BookingState = "idle"
	StateAwaitingPayment     BookingState = "awaiting_payment"
	StateAwaitingReservation BookingState = "awaiting_reservation"
	StateConfirmed           BookingState = "confirmed"
	StateFailed              BookingState = "failed"
)

var transitions = map[BookingState][]BookingState{
	StateIdle:                {StateAwaitingPayment},
	StateAwaitingPayment:     {StateAwaitingReservation, StateFailed},
	StateAwaitingReservation: {StateConfirmed, StateFailed},
}

func (s BookingState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Next validates a transition and returns the target state.
func (s BookingState) Next(to BookingState) (BookingState, error) {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return to, nil
		}
	}
	return s, fmt.Errorf("invalid booking transition %s -> %s", s, to)
}
