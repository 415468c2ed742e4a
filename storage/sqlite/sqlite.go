// Package sqlite provides the embedded SQLite ledger repository. It is the
// default store: a single file, no external service, WAL mode for concurrent
// readers.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pediadose/pediadose-api/ledger"
)

// Store implements ledger.Repository over a SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dbPath and applies the
// schema. Use ":memory:" for tests.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY churn under concurrent handlers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dose_events (
		id TEXT PRIMARY KEY,
		guardian_id TEXT NOT NULL,
		child_name TEXT NOT NULL DEFAULT '',
		drug_key TEXT NOT NULL,
		dose_mg REAL NOT NULL,
		form TEXT,
		dose_ml REAL,
		conc_label TEXT,
		weight_kg REAL,
		dose_text TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dose_events_guardian_drug_time
		ON dose_events (guardian_id, drug_key, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Timestamps are stored as fixed-width RFC 3339 UTC text so lexicographic
// comparison in SQL matches chronological order. RFC3339Nano would trim
// trailing zeros and break that property.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) Insert(ctx context.Context, e ledger.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dose_events
			(id, guardian_id, child_name, drug_key, dose_mg,
			 form, dose_ml, conc_label, weight_kg, dose_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GuardianID, e.ChildName, e.DrugKey, e.DoseMg,
		e.Metadata.Form, e.Metadata.DoseMl, e.Metadata.ConcLabel,
		e.Metadata.WeightKg, e.Metadata.DoseText,
		e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert dose event: %w", err)
	}
	return nil
}

func (s *Store) SumSince(ctx context.Context, guardianID, drugKey, child string, cutoff time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(dose_mg), 0) FROM dose_events
		WHERE guardian_id = ? AND drug_key = ? AND created_at >= ?`
	args := []any{guardianID, drugKey, cutoff.UTC().Format(timeLayout)}
	if child != "" {
		query += ` AND child_name = ?`
		args = append(args, child)
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum dose events: %w", err)
	}
	return total, nil
}

func (s *Store) ListSince(ctx context.Context, guardianID, drugKey string, cutoff time.Time) ([]ledger.Event, error) {
	query := `
		SELECT id, guardian_id, child_name, drug_key, dose_mg,
		       form, dose_ml, conc_label, weight_kg, dose_text, created_at
		FROM dose_events
		WHERE guardian_id = ? AND created_at >= ?`
	args := []any{guardianID, cutoff.UTC().Format(timeLayout)}
	if drugKey != "" {
		query += ` AND drug_key = ?`
		args = append(args, drugKey)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dose events: %w", err)
	}
	defer rows.Close()

	var events []ledger.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dose events: %w", err)
	}
	return events, nil
}

func (s *Store) LastSince(ctx context.Context, guardianID, drugKey, child string, cutoff time.Time) (*ledger.Event, error) {
	query := `
		SELECT id, guardian_id, child_name, drug_key, dose_mg,
		       form, dose_ml, conc_label, weight_kg, dose_text, created_at
		FROM dose_events
		WHERE guardian_id = ? AND drug_key = ? AND created_at >= ?`
	args := []any{guardianID, drugKey, cutoff.UTC().Format(timeLayout)}
	if child != "" {
		query += ` AND child_name = ?`
		args = append(args, child)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query last dose event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanEvent(rows)
	if err != nil {
		return nil, err
	}
	return &e, rows.Err()
}

func (s *Store) AnySince(ctx context.Context, guardianID string, cutoff time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM dose_events
		WHERE guardian_id = ? AND created_at >= ?
		LIMIT 1`,
		guardianID, cutoff.UTC().Format(timeLayout)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe dose events: %w", err)
	}
	return true, nil
}

func (s *Store) PruneBefore(ctx context.Context, guardianID, drugKey string, cutoff time.Time) error {
	query := `DELETE FROM dose_events WHERE guardian_id = ? AND created_at < ?`
	args := []any{guardianID, cutoff.UTC().Format(timeLayout)}
	if drugKey != "" {
		query += ` AND drug_key = ?`
		args = append(args, drugKey)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to prune dose events: %w", err)
	}
	return nil
}

func scanEvent(rows *sql.Rows) (ledger.Event, error) {
	var (
		e       ledger.Event
		form    sql.NullString
		doseMl  sql.NullFloat64
		label   sql.NullString
		weight  sql.NullFloat64
		text    sql.NullString
		created string
	)
	if err := rows.Scan(&e.ID, &e.GuardianID, &e.ChildName, &e.DrugKey, &e.DoseMg,
		&form, &doseMl, &label, &weight, &text, &created); err != nil {
		return ledger.Event{}, fmt.Errorf("failed to scan dose event: %w", err)
	}

	e.Metadata = ledger.Metadata{
		Form:      form.String,
		DoseMl:    doseMl.Float64,
		ConcLabel: label.String,
		WeightKg:  weight.Float64,
		DoseText:  text.String,
	}

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("failed to parse stored timestamp %q: %w", created, err)
	}
	e.CreatedAt = t.UTC()
	return e, nil
}
