package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrationsFS embed.FS

// Run applies every pending migration for the database driver of dbx
// ("postgres" or "sqlite").
func Run(dbx *sqlx.DB) error {
	driver := dbx.DriverName()

	d, err := iofs.New(migrationsFS, driver)
	if err != nil {
		return fmt.Errorf("create migrations source: %w", err)
	}

	var instance database.Driver
	switch driver {
	case "postgres":
		instance, err = postgres.WithInstance(dbx.DB, &postgres.Config{})
	case "sqlite":
		instance, err = sqlite.WithInstance(dbx.DB, &sqlite.Config{})
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("create %s instance for migration: %w", driver, err)
	}

	migrator, err := migrate.NewWithInstance("iofs", d, driver, instance)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("migrated", "driver", driver)

	return nil
}
