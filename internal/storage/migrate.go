package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"moneypal/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations idempotently brings the database file up to the current
// schema. Safe to call on every startup; it never destroys existing data.
// A file whose table shape conflicts with the expected schema surfaces as
// core.ErrSchema.
func RunMigrations(dbPath string) error {
	// Separate connection so migrations never interfere with the engine pool.
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("%w: open migration database: %v", core.ErrStorageUnavailable, err)
	}
	defer migrateDB.Close()

	driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("%w: create sqlite driver: %v", core.ErrSchema, err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: create iofs source: %v", core.ErrSchema, err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("%w: create migrate instance: %v", core.ErrSchema, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: run migrations: %v", core.ErrSchema, err)
	}

	return nil
}
