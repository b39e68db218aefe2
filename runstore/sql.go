package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// Supported run archive backends
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stepchain/stepchain/config"
)

// ============================================================================
// SQL STORE
// ============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	run_id       TEXT PRIMARY KEY,
	pipeline     TEXT NOT NULL,
	status       TEXT NOT NULL,
	failing_step TEXT NOT NULL DEFAULT '',
	error_detail TEXT NOT NULL DEFAULT '',
	context      TEXT NOT NULL,
	started_at   TIMESTAMP NOT NULL,
	finished_at  TIMESTAMP NOT NULL
)`

// SQLStore archives runs in a relational database. SQLite, PostgreSQL and
// MySQL are supported.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore creates a store over an existing database handle
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize run archive schema: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// Open creates the store described by the storage configuration
func Open(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "inmemory":
		return NewMemoryStore(), nil
	case "sqlite":
		return openSQL("sqlite3", cfg.DSN)
	case "postgres":
		return openSQL("postgres", cfg.DSN)
	case "mysql":
		return openSQL("mysql", cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func openSQL(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s run archive: %w", driver, err)
	}
	store, err := NewSQLStore(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save implements Store.Save
func (s *SQLStore) Save(ctx context.Context, record *Record) error {
	query := s.rebind(`INSERT INTO pipeline_runs
		(run_id, pipeline, status, failing_step, error_detail, context, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		record.RunID, record.Pipeline, record.Status, record.FailingStep,
		record.ErrorDetail, string(record.Context), record.StartedAt, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to archive run %s: %w", record.RunID, err)
	}
	return nil
}

// Get implements Store.Get
func (s *SQLStore) Get(ctx context.Context, runID string) (*Record, error) {
	query := s.rebind(`SELECT run_id, pipeline, status, failing_step, error_detail, context, started_at, finished_at
		FROM pipeline_runs WHERE run_id = ?`)

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return record, nil
}

// List implements Store.List
func (s *SQLStore) List(ctx context.Context, pipeline string, limit int) ([]*Record, error) {
	query := `SELECT run_id, pipeline, status, failing_step, error_detail, context, started_at, finished_at
		FROM pipeline_runs`
	var args []interface{}
	if pipeline != "" {
		query += " WHERE pipeline = ?"
		args = append(args, pipeline)
	}
	query += " ORDER BY finished_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close implements Store.Close
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites '?' placeholders to '$n' for PostgreSQL
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var contextJSON string
	err := row.Scan(&record.RunID, &record.Pipeline, &record.Status, &record.FailingStep,
		&record.ErrorDetail, &contextJSON, &record.StartedAt, &record.FinishedAt)
	if err != nil {
		return nil, err
	}
	record.Context = []byte(contextJSON)
	return &record, nil
}
