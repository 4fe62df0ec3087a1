package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visaslot/internal/db"
	"github.com/example/visaslot/internal/domain/visa"
	"github.com/example/visaslot/internal/internaltypes"
)

type call struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs []call
	row   fakeRow
	rows  *fakeRows
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) error {
	f.execs = append(f.execs, call{sql, args})
	return nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) db.Row { return f.row }

func (f *fakeDB) Query(context.Context, string, ...any) (db.Rows, error) { return f.rows, nil }

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.vals, dest)
}

type fakeRows struct {
	data [][]any
	i    int
}

func (r *fakeRows) Close() {}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.data[r.i-1], dest)
}

func assign(vals, dest []any) error {
	if len(vals) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range vals {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case **string:
			*d, _ = v.(*string)
		case *time.Time:
			*d = v.(time.Time)
		case **time.Time:
			*d, _ = v.(*time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

func TestRecordPartialFailure(t *testing.T) {
	f := &fakeDB{}
	r := NewRepo(f)
	pf := &visa.PartialFailureError{RequestID: "req-1", Country: "USA", PaymentID: "pay_9", Err: errors.New("502")}

	require.NoError(t, r.RecordPartialFailure(context.Background(), pf))
	require.Len(t, f.execs, 1)
	assert.Contains(t, f.execs[0].sql, "INSERT INTO partial_failures")
	assert.Equal(t, []any{"req-1", "USA", "pay_9", "502"}, f.execs[0].args)
}

func TestRecordBookingNullDate(t *testing.T) {
	f := &fakeDB{}
	require.NoError(t, NewRepo(f).RecordBooking(context.Background(), visa.BookingResult{Country: "Canada", SlotID: "CA-1"}, "pay_1"))
	require.Len(t, f.execs, 1)
	assert.Nil(t, f.execs[0].args[3].(*time.Time))
}

func TestList(t *testing.T) {
	created := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeDB{rows: &fakeRows{data: [][]any{
		{"req-1", "USA", "pay_1", "timeout", StatusOpen, (*string)(nil), created, (*time.Time)(nil)},
	}}}

	got, err := NewRepo(f).List(context.Background(), StatusOpen)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, visa.CountryCode("USA"), got[0].Country)
	assert.Equal(t, "pay_1", got[0].PaymentID)
	assert.Nil(t, got[0].ResolvedAt)
}

func TestResolveUnknown(t *testing.T) {
	f := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := NewRepo(f).Resolve(context.Background(), "nope", "refunded")
	assert.ErrorIs(t, err, internaltypes.ErrNotFound)
	assert.True(t, db.IsNotFound(err))
	assert.ErrorContains(t, err, "nope")
}

func TestResolveDatabaseError(t *testing.T) {
	f := &fakeDB{row: fakeRow{err: errors.New("connection reset")}}
	_, err := NewRepo(f).Resolve(context.Background(), "req-1", "refunded")
	assert.ErrorContains(t, err, "connection reset")
	assert.False(t, db.IsNotFound(err))
}

func TestResolve(t *testing.T) {
	note := "refunded"
	now := time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)
	f := &fakeDB{row: fakeRow{vals: []any{"req-1", "USA", "pay_1", "timeout", StatusResolved, &note, now, &now}}}
	e, err := NewRepo(f).Resolve(context.Background(), "req-1", note)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, e.Status)
	require.NotNil(t, e.Note)
	assert.Equal(t, "refunded", *e.Note)
}
