package session

import (
	"testing"
	"time"
)

func TestGetOrCreate_SameReference(t *testing.T) {
	store := NewStore(StoreConfig{})
	a, err := store.GetOrCreate("call-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := store.GetOrCreate("call-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatal("GetOrCreate must return the same session reference")
	}
	// Milestone written through one reference is visible through the other.
	a.MarkConnected()
	if conn, _, _, _ := b.Milestones(); !conn {
		t.Fatal("milestone update lost across references")
	}
}

func TestGetOrCreate_MissingID(t *testing.T) {
	store := NewStore(StoreConfig{})
	if _, err := store.GetOrCreate(""); err != ErrMissingID {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestGetOrCreate_FreshState(t *testing.T) {
	store := NewStore(StoreConfig{})
	sess, _ := store.GetOrCreate("call-1")
	conn, started, part, greeted := sess.Milestones()
	if conn || started || part || greeted {
		t.Fatal("new session must start with all milestones false")
	}
	if sess.Status() != StatusInitializing {
		t.Fatalf("expected initializing status, got %q", sess.Status())
	}
	if len(sess.Participants()) != 0 {
		t.Fatal("new session must start with no participants")
	}
}

func TestRemove_DropsSessionAndAliases(t *testing.T) {
	store := NewStore(StoreConfig{})
	short := "21f0a300-1234-4bd2-9abc-0123456789ab"
	long := encodedID("abcdef0123456789-abcdef0123456789")

	canon := store.Normalize(short)
	if _, err := store.GetOrCreate(canon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.Normalize(long); got != canon {
		t.Fatalf("long id normalized to %q, want %q", got, canon)
	}

	store.Remove(canon)
	if _, ok := store.Lookup(canon); ok {
		t.Fatal("session still present after Remove")
	}
	// Post-removal, the old long id no longer points at the dead canonical.
	if got := store.Normalize(long); got != long {
		t.Fatalf("stale alias survived removal: %q", got)
	}
}

func TestRemove_Unknown(t *testing.T) {
	store := NewStore(StoreConfig{})
	store.Remove("never-existed") // must not panic
}

func TestExpiry_ReapsSessionAndAliases(t *testing.T) {
	var evicted []string
	store := NewStore(StoreConfig{
		TTL: time.Minute,
		OnEvict: func(s *Session) {
			evicted = append(evicted, s.CanonicalID)
		},
	})

	// Capture the expiry callback instead of arming a real timer.
	var fire func()
	store.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		if d != time.Minute {
			t.Fatalf("timer armed with %v, want 1m", d)
		}
		fire = fn
		return time.NewTimer(time.Hour)
	}

	canon := store.Normalize("21f0a300-1234-4bd2-9abc-0123456789ab")
	long := encodedID("abcdef0123456789-abcdef0123456789")
	store.GetOrCreate(canon)
	store.Normalize(long)

	fire()
	if _, ok := store.Lookup(canon); ok {
		t.Fatal("session survived expiry")
	}
	if got := store.Normalize(long); got != long {
		t.Fatalf("alias survived expiry: %q", got)
	}
	if len(evicted) != 1 || evicted[0] != canon {
		t.Fatalf("unexpected evictions: %v", evicted)
	}

	// A second fire after explicit state loss is a no-op.
	fire()
	if len(evicted) != 1 {
		t.Fatal("expiry fired eviction twice")
	}
}

func TestExpiry_CancelledByRemove(t *testing.T) {
	store := NewStore(StoreConfig{
		OnEvict: func(s *Session) {
			t.Fatalf("eviction fired for explicitly removed session %s", s.CanonicalID)
		},
	})
	var fire func()
	store.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		fire = fn
		return time.NewTimer(time.Hour)
	}

	store.GetOrCreate("call-1")
	store.Remove("call-1")
	fire() // timer already cancelled; firing the captured callback is a no-op
}

func TestLen(t *testing.T) {
	store := NewStore(StoreConfig{})
	store.GetOrCreate("a")
	store.GetOrCreate("b")
	if store.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", store.Len())
	}
}
