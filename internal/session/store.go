package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrMissingID is returned when a caller asks for a session with an empty
// identifier. The event that produced it should be discarded.
var ErrMissingID = errors.New("session: missing call identifier")

// DefaultTTL is the inactivity window after which an unterminated session is
// reaped together with its aliases.
const DefaultTTL = 30 * time.Minute

// StoreConfig configures the session store.
type StoreConfig struct {
	// TTL is the per-session expiry window. Defaults to DefaultTTL.
	TTL time.Duration

	// OnEvict is called when a session is removed by the reaper (not on
	// explicit Remove). The session is already unreachable when it runs.
	OnEvict func(*Session)

	// Logger receives store lifecycle logs. Optional.
	Logger *slog.Logger
}

// Store owns all live call sessions and the identifier alias table.
// GetOrCreate returns the same *Session for a canonical id for the whole
// lifetime of the call, so milestone updates from interleaved handlers land
// on one shared record.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	aliases  *aliasTable
	timers   map[string]*time.Timer

	ttl     time.Duration
	onEvict func(*Session)
	logger  *slog.Logger
	nowFunc func() time.Time

	// afterFunc is swapped in tests to run expiry synchronously.
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewStore creates an empty session store.
func NewStore(cfg StoreConfig) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		sessions:  make(map[string]*Session),
		aliases:   newAliasTable(),
		timers:    make(map[string]*time.Timer),
		ttl:       ttl,
		onEvict:   cfg.OnEvict,
		logger:    logger,
		nowFunc:   time.Now,
		afterFunc: time.AfterFunc,
	}
}

// Normalize resolves a raw call identifier from any event format to the
// canonical session key, registering new aliases as a side effect. It
// returns "" only for empty input.
func (s *Store) Normalize(raw string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aliases.resolve(raw)
}

// GetOrCreate returns the session for the canonical id, creating it with all
// milestones false and an armed expiry timer if it does not exist.
func (s *Store) GetOrCreate(canonicalID string) (*Session, error) {
	if canonicalID == "" {
		return nil, ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[canonicalID]; ok {
		return sess, nil
	}
	sess := newSession(canonicalID, s.nowFunc())
	s.sessions[canonicalID] = sess
	if _, known := s.aliases.canonical[canonicalID]; !known {
		s.aliases.resolve(canonicalID)
	}
	s.timers[canonicalID] = s.afterFunc(s.ttl, func() { s.expire(canonicalID) })
	s.logger.Debug("session created", "call_id", canonicalID, "ttl", s.ttl)
	return sess, nil
}

// Lookup returns the session for the canonical id if it exists. Late
// provider callbacks for reaped sessions look up, get false, and move on.
func (s *Store) Lookup(canonicalID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[canonicalID]
	return sess, ok
}

// Remove cancels the expiry timer and deletes the session together with
// every alias pointing at it. Removal is destructive; any persistence
// handoff must happen before calling it.
func (s *Store) Remove(canonicalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(canonicalID)
}

func (s *Store) removeLocked(canonicalID string) *Session {
	sess, ok := s.sessions[canonicalID]
	if !ok {
		return nil
	}
	if t, ok := s.timers[canonicalID]; ok {
		t.Stop()
		delete(s.timers, canonicalID)
	}
	delete(s.sessions, canonicalID)
	s.aliases.removeCanonical(canonicalID)
	s.logger.Debug("session removed", "call_id", canonicalID)
	return sess
}

// expire is the reaper path, invoked by the per-session timer.
func (s *Store) expire(canonicalID string) {
	s.mu.Lock()
	sess := s.removeLocked(canonicalID)
	s.mu.Unlock()
	if sess == nil {
		return
	}
	s.logger.Info("session expired", "call_id", canonicalID, "age", s.nowFunc().Sub(sess.CreatedAt))
	if s.onEvict != nil {
		s.onEvict(sess)
	}
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
