package infrastructure

import (
	"database/sql"
	"fmt"
	"log"
)

// MigrationsRegistry создаёт служебную таблицу учёта миграций.
type MigrationsRegistry struct{}

func (m *MigrationsRegistry) UpMigration(db *sql.DB) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS migrations;
		CREATE TABLE IF NOT EXISTS migrations.migrations (
			name TEXT PRIMARY KEY,
			time TIMESTAMPTZ NOT NULL
		);
		`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations registry: %w", err)
	}
	log.Println("Migrations registry is ready.")
	return nil
}

// ApplyOnce выполняет запрос миграции, если она ещё не помечена выполненной.
func ApplyOnce(db *sql.DB, name, query string) error {
	var migrationExists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", name).Scan(&migrationExists)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", name)
		return nil
	}

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to apply migration '%s': %w", name, err)
	}

	_, err = db.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", name)
	if err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", name, err)
	}

	log.Printf("Migration '%s' completed successfully.", name)
	return nil
}
