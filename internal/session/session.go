// Package session implements per-call state for the call orchestrator:
// the call session record with its conversation milestones, the identifier
// alias table, and the TTL-backed session store.
package session

import (
	"sync"
	"time"
)

// Status describes the coarse lifecycle phase of a call session.
// It is advisory only; conversation gating is driven by the milestones.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusConnected    Status = "connected"
	StatusStarted      Status = "started"
	StatusEnded        Status = "ended"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Turn is a single utterance in the conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Patient is the call context supplied by the record-keeping collaborator.
// The orchestrator treats it as opaque beyond the phone number, which feeds
// the recognition target fallback.
type Patient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Session is the mutable state of one phone call. All mutators are safe for
// concurrent use; milestone updates and the greeting latch are single
// critical sections so that interleaved webhook handlers cannot observe a
// half-applied update.
type Session struct {
	CanonicalID string
	CreatedAt   time.Time

	mu               sync.Mutex
	patient          *Patient
	status           Status
	history          []Turn
	participants     []string
	participantSeen  map[string]struct{}
	connected        bool
	started          bool
	participantAdded bool
	greetingPlayed   bool
}

func newSession(canonicalID string, now time.Time) *Session {
	return &Session{
		CanonicalID:     canonicalID,
		CreatedAt:       now,
		status:          StatusInitializing,
		participantSeen: make(map[string]struct{}),
	}
}

// SetPatient attaches patient context to the session. Lazily created
// sessions start without one; the gate stays closed until it arrives.
func (s *Session) SetPatient(p *Patient) {
	s.mu.Lock()
	s.patient = p
	s.mu.Unlock()
}

// Patient returns the attached patient context, or nil.
func (s *Session) Patient() *Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patient
}

// SetStatus updates the advisory lifecycle status.
func (s *Session) SetStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Status returns the advisory lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// MarkConnected records the connected milestone. Setting an already-true
// milestone is a no-op; the return value reports whether anything changed.
func (s *Session) MarkConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return false
	}
	s.connected = true
	return true
}

// MarkStarted records the started milestone.
func (s *Session) MarkStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return false
	}
	s.started = true
	return true
}

// AddParticipant records a participant address and flips the
// participant-added milestone. Duplicate addresses are ignored.
func (s *Session) AddParticipant(addr string) bool {
	if addr == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participantSeen[addr]; !ok {
		s.participantSeen[addr] = struct{}{}
		s.participants = append(s.participants, addr)
	}
	if s.participantAdded {
		return false
	}
	s.participantAdded = true
	return true
}

// MarkParticipantAdded flips the participant-added milestone without
// recording an address, for participant events that carry none.
func (s *Session) MarkParticipantAdded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.participantAdded {
		return false
	}
	s.participantAdded = true
	return true
}

// Participants returns the observed participant addresses in arrival order.
func (s *Session) Participants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.participants))
	copy(out, s.participants)
	return out
}

// Milestones reports the current milestone flags.
func (s *Session) Milestones() (connected, started, participantAdded, greetingPlayed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected, s.started, s.participantAdded, s.greetingPlayed
}

// TryBeginGreeting is the synchronization gate: it returns true exactly once,
// when connected, started and participant-added all hold, patient context is
// present, and the greeting has not already been claimed. The check and the
// latch flip happen in one critical section, so two interleaved handlers can
// never both win.
func (s *Session) TryBeginGreeting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.greetingPlayed {
		return false
	}
	if !s.connected || !s.started || !s.participantAdded || s.patient == nil {
		return false
	}
	s.greetingPlayed = true
	return true
}

// ResetGreeting rolls the greeting latch back after a failed attempt to
// start speaking, so a later duplicate event can re-fire the gate. The three
// ordinary milestones are monotonic and never reset.
func (s *Session) ResetGreeting() {
	s.mu.Lock()
	s.greetingPlayed = false
	s.mu.Unlock()
}

// AppendTurn appends one turn to the conversation history.
func (s *Session) AppendTurn(role Role, text string, at time.Time) {
	s.mu.Lock()
	s.history = append(s.history, Turn{Role: role, Text: text, Timestamp: at})
	s.mu.Unlock()
}

// History returns a copy of the conversation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}
