package records

import (
	"context"
	"sync"

	"github.com/haasonsaas/callflow/internal/session"
)

// MemoryStore is an in-memory Store. Useful for tests and for running
// without a database.
type MemoryStore struct {
	mu       sync.Mutex
	patients map[string]*session.Patient
	outcomes []Outcome
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patients: make(map[string]*session.Patient)}
}

// AddPatient registers a patient keyed by phone number.
func (m *MemoryStore) AddPatient(p *session.Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.Phone] = p
}

func (m *MemoryStore) PatientByPhone(_ context.Context, phone string) (*session.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[phone]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) SaveOutcome(_ context.Context, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

// Outcomes returns a copy of every saved outcome.
func (m *MemoryStore) Outcomes() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}

func (m *MemoryStore) Close() error { return nil }
