package user

import (
	"time"

	"github.com/example/visaslot/internal/domain/visa"
)

// Profile is the single persisted user blob: {name, bookings}.
type Profile struct {
	Name     string          `json:"name"`
	Bookings []BookingRecord `json:"bookings"`
}

type BookingRecord struct {
	Country             visa.CountryCode `json:"country"`
	SlotID              string           `json:"slotId"`
	Date                time.Time        `json:"date"`
	ConfirmationChannel string           `json:"confirmationChannel,omitempty"`
	PaymentID           string           `json:"paymentId,omitempty"`
	BookedAt            time.Time        `json:"bookedAt"`
}

func (p Profile) ActiveBookings(now time.Time) int {
	n := 0
	for _, b := range p.Bookings {
		if b.Date.IsZero() || !b.Date.Before(now) {
			n++
		}
	}
	return n
}

func (p *Profile) AddBooking(res visa.BookingResult, paymentID string, at time.Time) {
	p.Bookings = append(p.Bookings, BookingRecord{
		Country:             res.Country,
		SlotID:              res.SlotID,
		Date:                res.Date,
		ConfirmationChannel: res.ConfirmationChannel,
		PaymentID:           paymentID,
		BookedAt:            at.UTC(),
	})
}
