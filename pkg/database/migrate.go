package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		event_date VARCHAR(10) NOT NULL,
		event_time VARCHAR(5) NOT NULL,
		notes TEXT,
		category VARCHAR(16) NOT NULL DEFAULT 'Other',
		category_source VARCHAR(8) NOT NULL DEFAULT 'auto',
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		search_text TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE events ADD COLUMN IF NOT EXISTS search_text TEXT NOT NULL DEFAULT ''`,
	`CREATE INDEX IF NOT EXISTS idx_events_schedule ON events (archived, event_date, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_category ON events (category)`,
	`CREATE TABLE IF NOT EXISTS export_jobs (
		id UUID PRIMARY KEY,
		format VARCHAR(8) NOT NULL,
		filter JSONB NOT NULL DEFAULT '{}',
		status VARCHAR(16) NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		result_url TEXT,
		error_message TEXT,
		created_by VARCHAR(128) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON export_jobs (status, created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		event_date TEXT NOT NULL,
		event_time TEXT NOT NULL,
		notes TEXT,
		category TEXT NOT NULL DEFAULT 'Other',
		category_source TEXT NOT NULL DEFAULT 'auto',
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		search_text TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_schedule ON events (archived, event_date, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_events_category ON events (category)`,
	`CREATE TABLE IF NOT EXISTS export_jobs (
		id TEXT PRIMARY KEY,
		format TEXT NOT NULL,
		filter TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		result_url TEXT,
		error_message TEXT,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON export_jobs (status, created_at)`,
}

// sqliteColumns are added to tables created by older releases. SQLite has
// no ADD COLUMN IF NOT EXISTS, so presence is checked first.
var sqliteColumns = []struct{ table, column, ddl string }{
	{"events", "search_text", "TEXT NOT NULL DEFAULT ''"},
}

// Migrate creates the schema for the connected dialect. Every statement is
// idempotent so it runs on each start-up.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements := postgresSchema
	sqlite := db.DriverName() == sqliteDriver
	if sqlite {
		statements = sqliteSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if sqlite {
		for _, col := range sqliteColumns {
			if err := addSQLiteColumn(ctx, db, col.table, col.column, col.ddl); err != nil {
				return err
			}
		}
	}
	return nil
}

func addSQLiteColumn(ctx context.Context, db *sqlx.DB, table, column, ddl string) error {
	var present int
	if err := db.GetContext(ctx, &present, "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column); err != nil {
		return fmt.Errorf("migrate: inspect %s: %w", table, err)
	}
	if present > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl)); err != nil {
		return fmt.Errorf("migrate: add %s.%s: %w", table, column, err)
	}
	return nil
}
