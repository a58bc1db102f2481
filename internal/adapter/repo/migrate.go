package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func migrations() fs.FS {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

func dialectFor(driver string) (database.Dialect, error) {
	switch driver {
	case DriverMySQL:
		return database.DialectMySQL, nil
	case DriverSQLite:
		return database.DialectSQLite3, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// newMigrator builds a goose provider over fsys. Each migration file runs in
// its own transaction together with its version row.
func newMigrator(db *sql.DB, driver string, fsys fs.FS) (*goose.Provider, error) {
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return p, nil
}

// LatestVersion is the highest migration version embedded in the binary.
func LatestVersion() int {
	var latest int64
	err := fs.WalkDir(migrations(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if v, err := goose.NumericComponent(path); err == nil && v > latest {
			latest = v
		}
		return nil
	})
	if err != nil {
		return 0
	}
	return int(latest)
}

// SchemaVersion returns the highest applied migration, 0 on a fresh database.
func SchemaVersion(ctx context.Context, db *sql.DB, driver string) (int, error) {
	p, err := newMigrator(db, driver, migrations())
	if err != nil {
		return 0, err
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v), nil
}

// Migrate applies pending migrations in version order and returns how many ran.
func Migrate(ctx context.Context, db *sql.DB, driver string, log *slog.Logger) (int, error) {
	return migrate(ctx, db, driver, migrations(), log)
}

func migrate(ctx context.Context, db *sql.DB, driver string, fsys fs.FS, log *slog.Logger) (int, error) {
	p, err := newMigrator(db, driver, fsys)
	if err != nil {
		return 0, err
	}
	results, err := p.Up(ctx)
	var partial *goose.PartialError
	if errors.As(err, &partial) {
		results = partial.Applied
	}
	for _, r := range results {
		if log != nil {
			log.Info("migration applied", "version", r.Source.Version, "file", r.Source.Path, "took", r.Duration)
		}
	}
	if err != nil {
		return len(results), fmt.Errorf("migrate: %w", err)
	}
	return len(results), nil
}

// RequireCurrent fails when the database is behind the binary's schema.
func RequireCurrent(ctx context.Context, db *sql.DB, driver string) error {
	have, err := SchemaVersion(ctx, db, driver)
	if err != nil {
		return err
	}
	if want := LatestVersion(); have < want {
		return fmt.Errorf("database schema at version %d, need %d: run `storefront migrate`", have, want)
	}
	return nil
}
