package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// schemaFS holds the secret store schema. Version 1 creates the secrets
// table that keeps the encrypted MSAL token cache.
//
//go:embed migrations/*.sql
var schemaFS embed.FS

// ErrDirtySchema is returned when a previous schema upgrade stopped part way.
// The database must be restored or deleted; the dashboard only loses the
// cached sign-in when it is deleted.
var ErrDirtySchema = errors.New("secret store schema is dirty")

// RunMigrations brings the secret store schema up to date and returns the
// resulting schema version. Running it against a current database is a no-op.
func RunMigrations(db *sql.DB) (uint, error) {
	source, err := iofs.New(schemaFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("open embedded secret store schema: %w", err)
	}

	target, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("attach schema migrator to secret store: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("create secret store migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			return 0, fmt.Errorf("%w at version %d", ErrDirtySchema, dirty.Version)
		}
		return 0, fmt.Errorf("upgrade secret store schema: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read secret store schema version: %w", err)
	}
	return version, nil
}
