package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/haasonsaas/callflow/internal/session"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and initializes) the records database. An empty path
// uses an in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("records: open database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS patients (
			id    TEXT PRIMARY KEY,
			name  TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS call_outcomes (
			id         TEXT PRIMARY KEY,
			call_id    TEXT NOT NULL,
			patient_id TEXT,
			end_reason TEXT NOT NULL,
			transcript TEXT NOT NULL,
			ended_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_outcomes_patient ON call_outcomes(patient_id);
	`)
	if err != nil {
		return fmt.Errorf("records: init schema: %w", err)
	}
	return nil
}

// UpsertPatient inserts or updates a patient row.
func (s *SQLiteStore) UpsertPatient(ctx context.Context, p *session.Patient) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (id, name, phone) VALUES (?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET name = excluded.name
	`, p.ID, p.Name, p.Phone)
	if err != nil {
		return fmt.Errorf("records: upsert patient: %w", err)
	}
	return nil
}

// PatientByPhone returns the patient registered under a phone number, or
// (nil, nil) when none exists.
func (s *SQLiteStore) PatientByPhone(ctx context.Context, phone string) (*session.Patient, error) {
	var p session.Patient
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone FROM patients WHERE phone = ?`, phone,
	).Scan(&p.ID, &p.Name, &p.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("records: patient lookup: %w", err)
	}
	return &p, nil
}

// SaveOutcome persists the result of a finished call.
func (s *SQLiteStore) SaveOutcome(ctx context.Context, outcome Outcome) error {
	transcript, err := json.Marshal(outcome.Transcript)
	if err != nil {
		return fmt.Errorf("records: encode transcript: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO call_outcomes (id, call_id, patient_id, end_reason, transcript, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), outcome.CallID, outcome.PatientID, outcome.EndReason, string(transcript), outcome.EndedAt)
	if err != nil {
		return fmt.Errorf("records: save outcome: %w", err)
	}
	return nil
}

// OutcomesByPatient returns saved outcomes for a patient, newest first.
func (s *SQLiteStore) OutcomesByPatient(ctx context.Context, patientID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id, patient_id, end_reason, transcript, ended_at
		FROM call_outcomes WHERE patient_id = ? ORDER BY ended_at DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("records: list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var transcript string
		if err := rows.Scan(&o.CallID, &o.PatientID, &o.EndReason, &transcript, &o.EndedAt); err != nil {
			return nil, fmt.Errorf("records: scan outcome: %w", err)
		}
		if err := json.Unmarshal([]byte(transcript), &o.Transcript); err != nil {
			return nil, fmt.Errorf("records: decode transcript: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
