// ABOUTME: SQLite implementation of the Store interfaces using modernc.org/sqlite
// ABOUTME: Handles connection setup, schema creation and transaction helpers

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: pragmas are per-connection and SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			full_name     TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			phone_number  TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS plots (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL REFERENCES accounts(id),
			name       TEXT NOT NULL,
			size       REAL NOT NULL,
			latitude   REAL NOT NULL,
			longitude  REAL NOT NULL,
			topography TEXT,
			soil_type  TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_plots_owner ON plots(owner_id);

		CREATE TABLE IF NOT EXISTS actions (
			id          TEXT PRIMARY KEY,
			plot_id     TEXT NOT NULL REFERENCES plots(id),
			kind        TEXT NOT NULL,
			action_date TEXT NOT NULL,
			created_at  TEXT NOT NULL,

			CHECK (kind IN ('planting', 'fertilizing', 'watering', 'treatment', 'harvesting', 'soil_reading'))
		);

		CREATE INDEX IF NOT EXISTS idx_actions_plot ON actions(plot_id, action_date);

		CREATE TABLE IF NOT EXISTS action_planting (
			action_id     TEXT PRIMARY KEY REFERENCES actions(id),
			crop_type     TEXT NOT NULL,
			variety       TEXT,
			seeding_rate  TEXT,
			planting_date TEXT
		);

		CREATE TABLE IF NOT EXISTS action_fertilizing (
			action_id        TEXT PRIMARY KEY REFERENCES actions(id),
			fertilizer_type  TEXT,
			application_rate REAL CHECK (application_rate IS NULL OR application_rate > 0),
			method           TEXT
		);

		CREATE TABLE IF NOT EXISTS action_watering (
			action_id    TEXT PRIMARY KEY REFERENCES actions(id),
			method       TEXT,
			amount       REAL CHECK (amount IS NULL OR amount >= 0),
			water_source TEXT
		);

		CREATE TABLE IF NOT EXISTS action_treatment (
			action_id          TEXT PRIMARY KEY REFERENCES actions(id),
			pesticide_type     TEXT,
			target_pest        TEXT,
			dosage             REAL CHECK (dosage IS NULL OR dosage > 0),
			application_method TEXT
		);

		CREATE TABLE IF NOT EXISTS action_harvesting (
			action_id    TEXT PRIMARY KEY REFERENCES actions(id),
			crop_yield   REAL CHECK (crop_yield IS NULL OR crop_yield >= 0),
			harvest_date TEXT,
			comments     TEXT
		);

		CREATE TABLE IF NOT EXISTS action_soil_reading (
			action_id      TEXT PRIMARY KEY REFERENCES actions(id),
			ph             REAL NOT NULL CHECK (ph >= 0 AND ph <= 14),
			nitrogen       REAL CHECK (nitrogen IS NULL OR nitrogen >= 0),
			phosphorus     REAL CHECK (phosphorus IS NULL OR phosphorus >= 0),
			potassium      REAL CHECK (potassium IS NULL OR potassium >= 0),
			organic_matter TEXT
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping reports whether the database connection is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying connection pool so callers can export its stats.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error. Statements inside fn must use tx, never s.db.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation checks if the error is a SQLite UNIQUE constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return t, nil
}

// nullString stores empty optional text as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timePtr(field string, v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(field, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
