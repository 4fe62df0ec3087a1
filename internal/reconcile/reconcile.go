// Package reconcile stores captured payments whose reservation failed, and
// confirmed bookings, so an operator can square the two.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/example/visaslot/internal/db"
	"github.com/example/visaslot/internal/domain/visa"
	"github.com/example/visaslot/internal/internaltypes"
)

const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

type Entry struct {
	RequestID  string
	Country    visa.CountryCode
	PaymentID  string
	Error      string
	Status     string
	Note       *string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

type Repo struct{ db db.Querier }

func NewRepo(d db.Querier) *Repo { return &Repo{db: d} }

// RecordPartialFailure is idempotent on the request id.
func (r *Repo) RecordPartialFailure(ctx context.Context, pf *visa.PartialFailureError) error {
	msg := ""
	if pf.Err != nil {
		msg = pf.Err.Error()
	}
	err := r.db.Exec(ctx, `
INSERT INTO partial_failures(request_id,country,payment_id,error,status)
VALUES ($1,$2,$3,$4,'open')
ON CONFLICT (request_id) DO NOTHING`,
		pf.RequestID, string(pf.Country), pf.PaymentID, msg)
	if err != nil {
		return fmt.Errorf("record partial failure %s: %w", pf.RequestID, err)
	}
	return nil
}

func (r *Repo) RecordBooking(ctx context.Context, res visa.BookingResult, paymentID string) error {
	var date *time.Time
	if !res.Date.IsZero() {
		d := res.Date
		date = &d
	}
	return r.db.Exec(ctx, `
INSERT INTO bookings(slot_id,country,payment_id,slot_date,confirmation_channel)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (slot_id) DO NOTHING`,
		res.SlotID, string(res.Country), paymentID, date, res.ConfirmationChannel)
}

// List returns entries with the given status, oldest first. An empty status
// lists everything.
func (r *Repo) List(ctx context.Context, status string) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
SELECT request_id,country,payment_id,error,status,note,created_at,resolved_at
FROM partial_failures
WHERE $1 = '' OR status = $1
ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var country string
		if err := rows.Scan(&e.RequestID, &country, &e.PaymentID, &e.Error, &e.Status, &e.Note, &e.CreatedAt, &e.ResolvedAt); err != nil {
			return nil, err
		}
		e.Country = visa.CountryCode(country)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Resolve closes an open entry. Resolving an unknown or already resolved
// entry reports internaltypes.ErrNotFound.
func (r *Repo) Resolve(ctx context.Context, requestID, note string) (Entry, error) {
	var e Entry
	var country string
	err := r.db.QueryRow(ctx, `
UPDATE partial_failures SET status='resolved', note=$2, resolved_at=now()
WHERE request_id=$1 AND status='open'
RETURNING request_id,country,payment_id,error,status,note,created_at,resolved_at`, requestID, note).
		Scan(&e.RequestID, &country, &e.PaymentID, &e.Error, &e.Status, &e.Note, &e.CreatedAt, &e.ResolvedAt)
	if err != nil {
		if db.IsNotFound(err) {
			return Entry{}, fmt.Errorf("partial failure %s: %w", requestID, internaltypes.ErrNotFound)
		}
		return Entry{}, db.WrapNotFound(err)
	}
	e.Country = visa.CountryCode(country)
	return e, nil
}
