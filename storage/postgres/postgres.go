// Package postgres provides the shared-database ledger repository, selected
// when DATABASE_URL is set. Timestamps live in TIMESTAMPTZ columns so the
// database compares instants, not strings.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pediadose/pediadose-api/ledger"
)

// Store implements ledger.Repository over a Postgres pool.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres through the pgx stdlib driver, verifies the
// connection and applies the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}
	return s, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS dose_events (
		id TEXT PRIMARY KEY,
		guardian_id TEXT NOT NULL,
		child_name TEXT NOT NULL DEFAULT '',
		drug_key TEXT NOT NULL,
		dose_mg DOUBLE PRECISION NOT NULL,
		form TEXT,
		dose_ml DOUBLE PRECISION,
		conc_label TEXT,
		weight_kg DOUBLE PRECISION,
		dose_text TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dose_events_guardian_drug_time
		ON dose_events (guardian_id, drug_key, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Insert(ctx context.Context, e ledger.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dose_events
			(id, guardian_id, child_name, drug_key, dose_mg,
			 form, dose_ml, conc_label, weight_kg, dose_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.GuardianID, e.ChildName, e.DrugKey, e.DoseMg,
		e.Metadata.Form, e.Metadata.DoseMl, e.Metadata.ConcLabel,
		e.Metadata.WeightKg, e.Metadata.DoseText, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert dose event: %w", err)
	}
	return nil
}

func (s *Store) SumSince(ctx context.Context, guardianID, drugKey, child string, cutoff time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(dose_mg), 0) FROM dose_events
		WHERE guardian_id = $1 AND drug_key = $2 AND created_at >= $3`
	args := []any{guardianID, drugKey, cutoff.UTC()}
	if child != "" {
		query += ` AND child_name = $4`
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
		WHERE guardian_id = $1 AND created_at >= $2`
	args := []any{guardianID, cutoff.UTC()}
	if drugKey != "" {
		query += ` AND drug_key = $3`
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
		WHERE guardian_id = $1 AND drug_key = $2 AND created_at >= $3`
	args := []any{guardianID, drugKey, cutoff.UTC()}
	if child != "" {
		query += ` AND child_name = $4`
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
		WHERE guardian_id = $1 AND created_at >= $2
		LIMIT 1`,
		guardianID, cutoff.UTC()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe dose events: %w", err)
	}
	return true, nil
}

func (s *Store) PruneBefore(ctx context.Context, guardianID, drugKey string, cutoff time.Time) error {
	query := `DELETE FROM dose_events WHERE guardian_id = $1 AND created_at < $2`
	args := []any{guardianID, cutoff.UTC()}
	if drugKey != "" {
		query += ` AND drug_key = $3`
		args = append(args, drugKey)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to prune dose events: %w", err)
	}
	return nil
}

func scanEvent(rows *sql.Rows) (ledger.Event, error) {
	var (
		e      ledger.Event
		form   sql.NullString
		doseMl sql.NullFloat64
		label  sql.NullString
		weight sql.NullFloat64
		text   sql.NullString
	)
	if err := rows.Scan(&e.ID, &e.GuardianID, &e.ChildName, &e.DrugKey, &e.DoseMg,
		&form, &doseMl, &label, &weight, &text, &e.CreatedAt); err != nil {
		return ledger.Event{}, fmt.Errorf("failed to scan dose event: %w", err)
	}

	e.Metadata = ledger.Metadata{
		Form:      form.String,
		DoseMl:    doseMl.Float64,
		ConcLabel: label.String,
		WeightKg:  weight.Float64,
		DoseText:  text.String,
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
