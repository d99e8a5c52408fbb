package migration

import (
	"database/sql"
	"fmt"

	"pimsync_api/pkg/logger"
)

type MigrationInterface interface {
	UpMigration(*sql.DB) error
}

type namedMigration interface {
	Name() string
}

// Apply runs the migrations in order and stops at the first failure.
func Apply(db *sql.DB, log logger.Logger, migrations ...MigrationInterface) error {
	for _, m := range migrations {
		name := fmt.Sprintf("%T", m)
		if n, ok := m.(namedMigration); ok {
			name = n.Name()
		}
		if err := m.UpMigration(db); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
		log.Debug("migration applied", "name", name)
	}
	return nil
}
