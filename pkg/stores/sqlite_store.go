package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists run history in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a store for the database at path. Call Init before
// use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: path}, nil
}

// Init opens the database, enables WAL mode and runs migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return s.migrate()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SaveRun inserts or replaces a run record.
func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRow) error {
	query := `
		INSERT OR REPLACE INTO runs (id, goals, outcome, started_at, completed_at, branch, commit_sha, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Goals,
		run.Outcome,
		run.StartedAt,
		run.CompletedAt,
		run.Branch,
		run.Commit,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveWorkUnits appends workunit rows for a run in one transaction.
func (s *SQLiteStore) SaveWorkUnits(ctx context.Context, rows []WorkUnitRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO workunits (id, run_id, name, labels, outcome, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query,
			row.ID, row.RunID, row.Name, row.Labels, row.Outcome, row.StartedAt, row.DurationMS,
		); err != nil {
			return fmt.Errorf("failed to save workunit %s: %w", row.Name, err)
		}
	}
	return tx.Commit()
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRow, error) {
	query := `
		SELECT id, goals, outcome, started_at, completed_at, branch, commit_sha, created_at
		FROM runs WHERE id = ?
	`
	run := &RunRow{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Goals, &run.Outcome, &run.StartedAt,
		&run.CompletedAt, &run.Branch, &run.Commit, &run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, goals, outcome, started_at, completed_at, branch, commit_sha, created_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRow
	for rows.Next() {
		var run RunRow
		if err := rows.Scan(
			&run.ID, &run.Goals, &run.Outcome, &run.StartedAt,
			&run.CompletedAt, &run.Branch, &run.Commit, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// WorkUnitsForRun returns the workunit rows of a run in start order.
func (s *SQLiteStore) WorkUnitsForRun(ctx context.Context, runID string) ([]WorkUnitRow, error) {
	query := `
		SELECT id, run_id, name, labels, outcome, started_at, duration_ms
		FROM workunits WHERE run_id = ? ORDER BY started_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workunits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []WorkUnitRow
	for rows.Next() {
		var wu WorkUnitRow
		if err := rows.Scan(
			&wu.ID, &wu.RunID, &wu.Name, &wu.Labels, &wu.Outcome, &wu.StartedAt, &wu.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan workunit: %w", err)
		}
		out = append(out, wu)
	}
	return out, rows.Err()
}
