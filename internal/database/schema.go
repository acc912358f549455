package database

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the registry tables if they do not already exist.
// DDL varies per driver only in the primary-key clause and index syntax;
// everything else is portable SQL. Timestamps are stored as fixed-width UTC
// text so that string comparison matches chronological order on every backend.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	driver := GetDBDriver()

	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	switch driver {
	case "postgres":
		pk = "BIGSERIAL PRIMARY KEY"
	case "mysql":
		pk = "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are declared
	// inline there and created separately everywhere else.
	inlineIndexes := ""
	if driver == "mysql" {
		inlineIndexes = `,
				KEY idx_plugin_name (name),
				KEY idx_plugin_updated_at (updated_at)`
	}

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS plugin (
				id %s,
				name VARCHAR(255) NOT NULL,
				version VARCHAR(100) NOT NULL,
				description TEXT NOT NULL,
				entrypoint TEXT NOT NULL,
				authors TEXT NOT NULL,
				tags TEXT NOT NULL,
				manifest TEXT NOT NULL,
				created_at VARCHAR(40) NOT NULL,
				updated_at VARCHAR(40) NOT NULL,
				latest_run_at VARCHAR(40) NOT NULL,
				CONSTRAINT uq_plugin_name_version UNIQUE (name, version)%s
			)`, pk, inlineIndexes),
	}
	if driver != "mysql" {
		statements = append(statements,
			`CREATE INDEX IF NOT EXISTS idx_plugin_name ON plugin (name)`,
			`CREATE INDEX IF NOT EXISTS idx_plugin_updated_at ON plugin (updated_at)`,
		)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
