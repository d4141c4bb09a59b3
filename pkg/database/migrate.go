package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"herald/pkg/logging"
)

// MigrateConfig points at an embedded directory of numbered *.up.sql/*.down.sql files.
type MigrateConfig struct {
	FS    fs.FS
	Dir   string
	Table string
}

// Migrate applies pending up migrations against db. The driver instance is
// not closed afterwards since that would close db.
func Migrate(db *sql.DB, cfg MigrateConfig, logger logging.Logger) error {
	src, err := iofs.New(cfg.FS, cfg.Dir)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	defer src.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: cfg.Table})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Database schema is up to date")
	case err != nil:
		return fmt.Errorf("failed to apply migrations: %w", err)
	default:
		version, dirty, _ := m.Version()
		logger.WithFields(logging.Fields{
			"version": version,
			"dirty":   dirty,
		}).Info("Database migrations applied")
	}
	return nil
}
