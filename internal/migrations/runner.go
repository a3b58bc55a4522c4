// Package migrations applies the embedded SQL schema at startup.
//
// Files are named NNN_description.sql and run in lexicographic order. Each
// applied file is recorded in schema_migrations, so Run is idempotent.
// 000_migrations_table.sql must sort first.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var sqlFiles embed.FS

// RequiredTables are the tables CheckSchema expects after all migrations ran.
var RequiredTables = []string{
	"users",
	"refresh_tokens",
	"trips",
	"segments",
	"comments",
	"trip_suggestions",
}

type entry struct {
	version string // file name
	sql     string
}

// Run applies every pending migration, each in its own transaction together
// with its schema_migrations row. It returns the versions it applied.
func Run(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	pending, err := pendingEntries(ctx, pool)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(pending))
	for _, e := range pending {
		if err := applyEntry(ctx, pool, e); err != nil {
			return applied, fmt.Errorf("migrations: apply %q: %w", e.version, err)
		}
		applied = append(applied, e.version)
	}

	if len(applied) == 0 {
		log.Println("migrations: schema is up to date")
	} else {
		log.Printf("migrations: %d migration(s) applied", len(applied))
	}
	return applied, nil
}

// Pending lists the versions Run would apply, without applying them.
func Pending(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	pending, err := pendingEntries(ctx, pool)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(pending))
	for i, e := range pending {
		out[i] = e.version
	}
	return out, nil
}

// CheckSchema verifies that RequiredTables exist in the public schema. It is a
// sanity check, not a structural diff.
func CheckSchema(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = ANY($1)`, RequiredTables)
	if err != nil {
		return fmt.Errorf("migrations: check schema: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(RequiredTables))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("migrations: check schema: scan: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("migrations: check schema: %w", err)
	}

	if missing := missingTables(found); len(missing) > 0 {
		return fmt.Errorf("migrations: required tables missing: %v", missing)
	}
	return nil
}

func missingTables(found map[string]bool) []string {
	var missing []string
	for _, t := range RequiredTables {
		if !found[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

func pendingEntries(ctx context.Context, pool *pgxpool.Pool) ([]entry, error) {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("migrations: ensure tracking table: %w", err)
	}

	entries, err := loadEntries()
	if err != nil {
		return nil, fmt.Errorf("migrations: load files: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("migrations: read applied versions: %w", err)
	}
	return filterPending(entries, applied), nil
}

func filterPending(entries []entry, applied map[string]bool) []entry {
	var out []entry
	for _, e := range entries {
		if applied[e.version] {
			continue
		}
		out = append(out, e)
	}
	return out
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		seen[v] = true
	}
	return seen, rows.Err()
}

// loadEntries returns the embedded files in lexicographic order, which
// embed.FS.ReadDir guarantees.
func loadEntries() ([]entry, error) {
	dirEntries, err := sqlFiles.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embedded dir: %w", err)
	}

	var out []entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		content, err := sqlFiles.ReadFile(de.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", de.Name(), err)
		}
		out = append(out, entry{version: de.Name(), sql: string(content)})
	}
	return out, nil
}

func applyEntry(ctx context.Context, pool *pgxpool.Pool, e entry) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, e.sql); err != nil {
		return fmt.Errorf("exec sql: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, e.version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("migrations: applied %q", e.version)
	return nil
}
