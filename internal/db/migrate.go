package db

import (
	"fmt"

	"github.com/token-tracker/tokentracker/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Credential{},
		&models.UsageSnapshot{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if IsSQLite(conn) {
		return nil
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_credentials_user_id_updated_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_credentials_user_id_updated_at
				ON credentials (user_id, updated_at DESC)
			`,
		},
		{
			name: "idx_usage_snapshots_user_id_fetched_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_usage_snapshots_user_id_fetched_at
				ON usage_snapshots (user_id, fetched_at DESC)
			`,
		},
		{
			name: "idx_users_username_lower",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_users_username_lower
				ON users (LOWER(username))
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}
	return nil
}
