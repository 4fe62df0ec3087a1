// Package migrate applies the embedded ledger schema.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/db"
)

//go:embed *.sql
var schema embed.FS

var versionName = regexp.MustCompile(`^\d{3}_[a-z0-9_]+\.sql$`)

const ensureTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// versions lists the embedded migrations in apply order.
func versions(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		if !versionName.MatchString(e.Name()) {
			return nil, fmt.Errorf("migration %q: name must look like 001_name.sql", e.Name())
		}
		out = append(out, e.Name())
	}
	slices.Sort(out)
	return out, nil
}

// Pending returns the migrations not yet recorded in schema_migrations.
func Pending(ctx context.Context, d db.Querier) ([]string, error) {
	all, err := versions(schema)
	if err != nil {
		return nil, err
	}
	if err := d.Exec(ctx, ensureTable); err != nil {
		return nil, fmt.Errorf("schema_migrations: %w", err)
	}
	var pending []string
	for _, v := range all {
		var applied bool
		if err := d.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, v).Scan(&applied); err != nil {
			return nil, fmt.Errorf("check %s: %w", v, err)
		}
		if !applied {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// Up applies every pending migration and returns the versions it applied.
func Up(ctx context.Context, d db.Querier, log zerolog.Logger) ([]string, error) {
	pending, err := Pending(ctx, d)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, v := range pending {
		b, err := schema.ReadFile(v)
		if err != nil {
			return applied, err
		}
		if err := d.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", v, err)
		}
		if err := d.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, v); err != nil {
			return applied, fmt.Errorf("record %s: %w", v, err)
		}
		log.Info().Str("version", v).Msg("migration applied")
		applied = append(applied, v)
	}
	if len(applied) == 0 {
		log.Debug().Msg("schema up to date")
	}
	return applied, nil
}
