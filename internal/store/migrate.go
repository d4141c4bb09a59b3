package store

import (
	"database/sql"
	"embed"

	"herald/pkg/database"
	"herald/pkg/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the herald schema up to date.
func Migrate(db *sql.DB, logger logging.Logger) error {
	return database.Migrate(db, database.MigrateConfig{
		FS:    migrationsFS,
		Dir:   "migrations",
		Table: "herald_schema_migrations",
	}, logger)
}
