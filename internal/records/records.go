// Package records is the patient/record collaborator: patient lookup to
// seed outbound calls, and persistence of finished call outcomes. The
// orchestrator hands data off here before destroying a session.
package records

import (
	"context"
	"time"

	"github.com/haasonsaas/callflow/internal/session"
)

// Outcome is the durable result of one finished call.
type Outcome struct {
	CallID     string
	PatientID  string
	EndReason  string
	Transcript []session.Turn
	EndedAt    time.Time
}

// Store provides patient context and accepts call outcomes.
type Store interface {
	// PatientByPhone returns the patient for a phone number, or
	// (nil, nil) when unknown.
	PatientByPhone(ctx context.Context, phone string) (*session.Patient, error)

	// SaveOutcome persists the result of a finished call.
	SaveOutcome(ctx context.Context, outcome Outcome) error

	Close() error
}
