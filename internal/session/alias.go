package session

import "strings"

// Identifier heuristics. Provider events carry the call identifier in two
// encodings: a short connection id, and a long base64 blob wrapping the
// server call URL. The blob always contains the base64 form of "https".
const (
	longIDThreshold = 64
	longIDMarker    = "aHR0cHM"
)

// isLongEncoded reports whether a raw identifier looks like the long
// base64-encoded form rather than a plain connection id.
func isLongEncoded(raw string) bool {
	return len(raw) > longIDThreshold && strings.Contains(raw, longIDMarker)
}

// aliasTable maps every identifier ever observed to the canonical session
// key it belongs to. It is append-only except for removeCanonical, which
// drops a canonical key and everything pointing at it in one step.
//
// Known limitation: normalization assumes the short id for a call is seen
// before its long-encoded form. If the long form arrives first it is
// registered as its own canonical key, and the call is split across two
// sessions until cleanup. The upstream event source makes the short-first
// ordering overwhelmingly likely, so this is documented rather than papered
// over with guessed unification rules.
type aliasTable struct {
	canonical map[string]string // observed id -> canonical key
	order     []string          // canonical keys, registration order
}

func newAliasTable() *aliasTable {
	return &aliasTable{canonical: make(map[string]string)}
}

// resolve maps a raw identifier to its canonical key, registering new
// identifiers as they are first seen. It returns "" only for empty input.
// Callers must hold the store lock.
func (t *aliasTable) resolve(raw string) string {
	if raw == "" {
		return ""
	}
	if canon, ok := t.canonical[raw]; ok {
		return canon
	}
	if isLongEncoded(raw) {
		// Alias the encoded id to the most recently registered short
		// canonical key, if one exists.
		for i := len(t.order) - 1; i >= 0; i-- {
			canon := t.order[i]
			if isLongEncoded(canon) {
				continue
			}
			t.canonical[raw] = canon
			return canon
		}
	}
	// First sighting: the id becomes its own canonical key.
	t.canonical[raw] = raw
	t.order = append(t.order, raw)
	return raw
}

// removeCanonical drops the canonical key and every alias that resolves to
// it. Callers must hold the store lock.
func (t *aliasTable) removeCanonical(canon string) {
	for id, c := range t.canonical {
		if c == canon {
			delete(t.canonical, id)
		}
	}
	for i, c := range t.order {
		if c == canon {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}
