package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to the latest embedded migration
func (db *DB) Migrate() error {
	driver, err := postgres.WithInstance(db.conn.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("%w: failed to create postgres driver: %v", ErrMigration, err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%w: failed to access migrations directory: %v", ErrMigration, err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("%w: failed to create migration source: %v", ErrMigration, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "hotspot", driver)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigration, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("%w: failed to read version: %v", ErrMigration, err)
	}
	if dirty {
		return fmt.Errorf("%w: database is dirty at version %d", ErrMigration, version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			safeLogInfo("Schema is up to date", zap.Uint("version", version))
			return nil
		}
		return fmt.Errorf("%w: %v", ErrMigration, err)
	}

	newVersion, _, _ := m.Version()
	safeLogInfo("Schema migrated", zap.Uint("from", version), zap.Uint("to", newVersion))
	return nil
}
