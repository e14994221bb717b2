package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/raincast/internal/models"
)

// Store persists completed forecast runs. Trained models are never stored.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// New wraps db. Times read back are converted to loc.
func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

// RunSummary is a forecast run without its slots.
type RunSummary struct {
	ID           string
	CreatedAt    time.Time
	Location     string
	Country      string
	Temp         float64
	WindDir      string
	RainTomorrow bool
}

// SaveRun stores a run and its slots in one transaction.
func (s *Store) SaveRun(run *models.ForecastRun) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c := run.Current
	if _, err := tx.Exec(`
		INSERT INTO forecast_runs (id, created_at, location, country, description, temp, temp_min, temp_max, feels_like, humidity, pressure, wind_speed, wind_bearing, clouds, visibility, observed_at, wind_dir, wind_dir_known, history_rows, rain_tomorrow)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.UTC(), c.Location, c.Country, c.Description, c.Temp, c.TempMin, c.TempMax, c.FeelsLike, c.Humidity, c.Pressure, c.WindSpeed, c.WindBearing, c.Clouds, c.Visibility, c.ObservedAt.UTC(), run.WindDir, run.WindDirKnown, run.HistoryRows, run.RainTomorrow); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, slot := range run.Slots {
		if _, err := tx.Exec(`
			INSERT INTO forecast_slots (run_id, slot, valid_at, label, temperature, humidity)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, i, slot.Time.UTC(), slot.Label, slot.Temperature, slot.Humidity); err != nil {
			return fmt.Errorf("insert slot %d of run %s: %w", i, run.ID, err)
		}
	}

	return tx.Commit()
}

// GetRun returns the run with the given id, or nil if there is none.
func (s *Store) GetRun(id string) (*models.ForecastRun, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, location, country, description, temp, temp_min, temp_max, feels_like, humidity, pressure, wind_speed, wind_bearing, clouds, visibility, observed_at, wind_dir, wind_dir_known, history_rows, rain_tomorrow
		FROM forecast_runs
		WHERE id = ?
	`, id)

	var run models.ForecastRun
	c := &run.Current
	var country, description sql.NullString
	var observedAt sql.NullTime
	err := row.Scan(&run.ID, &run.CreatedAt, &c.Location, &country, &description, &c.Temp, &c.TempMin, &c.TempMax, &c.FeelsLike, &c.Humidity, &c.Pressure, &c.WindSpeed, &c.WindBearing, &c.Clouds, &c.Visibility, &observedAt, &run.WindDir, &run.WindDirKnown, &run.HistoryRows, &run.RainTomorrow)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Country = country.String
	c.Description = description.String
	if observedAt.Valid {
		c.ObservedAt = observedAt.Time.In(s.loc)
	}
	run.CreatedAt = run.CreatedAt.In(s.loc)

	run.Slots, err = s.getSlots(id)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}
	return &run, nil
}

func (s *Store) getSlots(runID string) ([]models.Slot, error) {
	rows, err := s.db.Query(`
		SELECT valid_at, label, temperature, humidity
		FROM forecast_slots
		WHERE run_id = ?
		ORDER BY slot
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		var slot models.Slot
		if err := rows.Scan(&slot.Time, &slot.Label, &slot.Temperature, &slot.Humidity); err != nil {
			return nil, err
		}
		slot.Time = slot.Time.In(s.loc)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, created_at, location, country, temp, wind_dir, rain_tomorrow
		FROM forecast_runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var country sql.NullString
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Location, &country, &r.Temp, &r.WindDir, &r.RainTomorrow); err != nil {
			return nil, err
		}
		r.Country = country.String
		r.CreatedAt = r.CreatedAt.In(s.loc)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRunsBefore removes runs created before cutoff and returns how many
// were deleted.
func (s *Store) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM forecast_slots
		WHERE run_id IN (SELECT id FROM forecast_runs WHERE created_at < ?)
	`, cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("delete slots: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM forecast_runs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
