package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Forecast run log",
		SQL: `
CREATE TABLE IF NOT EXISTS forecast_runs (
    id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL,
    location TEXT NOT NULL,
    country TEXT,
    description TEXT,
    temp REAL,
    temp_min REAL,
    temp_max REAL,
    feels_like REAL,
    humidity REAL,
    pressure REAL,
    wind_speed REAL,
    wind_bearing REAL,
    clouds INTEGER,
    visibility INTEGER,
    observed_at DATETIME,
    wind_dir TEXT NOT NULL,
    wind_dir_known BOOLEAN NOT NULL,
    history_rows INTEGER NOT NULL,
    rain_tomorrow BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS forecast_slots (
    run_id TEXT NOT NULL REFERENCES forecast_runs(id) ON DELETE CASCADE,
    slot INTEGER NOT NULL,
    valid_at DATETIME NOT NULL,
    label TEXT NOT NULL,
    temperature REAL NOT NULL,
    humidity REAL NOT NULL,
    PRIMARY KEY (run_id, slot)
);

CREATE INDEX IF NOT EXISTS idx_forecast_runs_created ON forecast_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_forecast_runs_location ON forecast_runs(location, created_at);
`,
	},
	{
		Version:     2,
		Description: "Raw observation payloads",
		SQL: `
CREATE TABLE IF NOT EXISTS raw_payloads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    fetched_at DATETIME NOT NULL,
    endpoint TEXT NOT NULL,
    location TEXT NOT NULL,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_raw_payloads_fetched ON raw_payloads(fetched_at);
`,
	},
}

// Migrate applies every migration not yet recorded in schema_migrations, each
// in its own transaction.
func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.apply(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) apply(m migration) error {
	log.Printf("migrations: applying %d - %s", m.Version, m.Description)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("execute migration %d: %w", m.Version, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
		m.Version, m.Description, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	log.Printf("migrations: completed %d", m.Version)
	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// MigrationVersion returns the highest applied migration, or 0 for a fresh
// database.
func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}

// LatestMigration is the version Migrate brings the schema to.
func LatestMigration() int {
	return migrations[len(migrations)-1].Version
}
