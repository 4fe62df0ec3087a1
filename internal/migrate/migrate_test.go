package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visaslot/internal/db"
)

type recorder struct {
	applied map[string]bool
	execs   []string
	failOn  string
}

func (r *recorder) Exec(_ context.Context, sql string, args ...any) error {
	if r.failOn != "" && strings.Contains(sql, r.failOn) {
		return errors.New("syntax error")
	}
	r.execs = append(r.execs, sql)
	if strings.HasPrefix(sql, "INSERT INTO schema_migrations") {
		r.applied[args[0].(string)] = true
	}
	return nil
}

func (r *recorder) QueryRow(_ context.Context, _ string, args ...any) db.Row {
	return boolRow(r.applied[args[0].(string)])
}

func (r *recorder) Query(context.Context, string, ...any) (db.Rows, error) { return nil, nil }

type boolRow bool

func (b boolRow) Scan(dest ...any) error {
	*(dest[0].(*bool)) = bool(b)
	return nil
}

func TestUpAppliesOnce(t *testing.T) {
	r := &recorder{applied: map[string]bool{}}
	applied, err := Up(context.Background(), r, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_reconciliation.sql", "002_bookings.sql"}, applied)
	first := len(r.execs)

	applied, err = Up(context.Background(), r, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, applied)
	assert.Equal(t, first+1, len(r.execs), "second run only ensures the bookkeeping table")
}

func TestPending(t *testing.T) {
	r := &recorder{applied: map[string]bool{"001_reconciliation.sql": true}}
	pending, err := Pending(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []string{"002_bookings.sql"}, pending)
}

func TestUpStopsAtFailingMigration(t *testing.T) {
	r := &recorder{applied: map[string]bool{}, failOn: "CREATE TABLE IF NOT EXISTS bookings"}
	applied, err := Up(context.Background(), r, zerolog.Nop())
	assert.ErrorContains(t, err, "apply 002_bookings.sql")
	assert.Equal(t, []string{"001_reconciliation.sql"}, applied)
	assert.False(t, r.applied["002_bookings.sql"])
}

func TestVersionsRejectsBadNames(t *testing.T) {
	_, err := versions(fstest.MapFS{
		"001_ok.sql": {Data: []byte("SELECT 1;")},
		"second.sql": {Data: []byte("SELECT 2;")},
		"README.md":  {Data: []byte("docs")},
	})
	assert.ErrorContains(t, err, "second.sql")

	got, err := versions(fstest.MapFS{
		"002_b.sql": {Data: []byte("SELECT 2;")},
		"001_a.sql": {Data: []byte("SELECT 1;")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, got)
}
