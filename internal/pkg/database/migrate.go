package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Migrate applies pending migrations found under sql/. Files are named like
// 0001_description.sql and run in order, each inside its own transaction
// together with its schema_migrations record.
func Migrate(ctx context.Context, db *DB) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := fs.Glob(migrationsFS, "sql/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	applied, err := loadApplied(ctx, db)
	if err != nil {
		return err
	}

	for _, f := range files {
		base := path.Base(f)
		ver, err := parseVersion(base)
		if err != nil {
			return fmt.Errorf("invalid migration filename %q: %w", base, err)
		}
		if applied[ver] {
			slog.Debug("Migration already applied", "version", ver, "file", base)
			continue
		}

		b, err := fs.ReadFile(migrationsFS, f)
		if err != nil {
			return err
		}

		slog.Info("Applying migration", "version", ver, "file", base)
		if err := applyMigration(ctx, db, ver, string(b)); err != nil {
			return fmt.Errorf("applying %s: %w", base, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *DB, version int, script string) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// No arguments: pgx uses the simple protocol so a file may hold many statements
	if _, err := tx.Exec(ctx, script); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)",
		version, time.Now().UTC(),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func loadApplied(ctx context.Context, db *DB) (map[int]bool, error) {
	rows, err := db.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}

	m := make(map[int]bool, len(versions))
	for _, v := range versions {
		m[int(v)] = true
	}
	return m, nil
}

func parseVersion(name string) (int, error) {
	i := strings.IndexByte(name, '_')
	if i <= 0 {
		return 0, fmt.Errorf("missing prefix number")
	}
	return strconv.Atoi(name[:i])
}
