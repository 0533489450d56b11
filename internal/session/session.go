// Package session holds short-lived conversational memory: the most recent
// entity each session has been talking about, so a follow-up like "send them
// an email" can resolve without the user repeating the name.
//
// Memory is process-local and bounded. Restarts forget everything by design.
package session

import (
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FallbackKey is the shared slot written on every Remember. Recall falls back
// to it when the session has no slot of its own, so single-user deployments
// keep working without session plumbing.
const FallbackKey = "_fallback"

// Entity identifies a person the conversation has referenced. Empty string
// fields are unset; EmployeeID is a pointer so id 0 stays distinguishable
// from absent.
type Entity struct {
	FirstName  string
	LastName   string
	Email      string
	EmployeeID *int
}

// FullName joins the name parts with a single space, skipping unset parts.
func (e Entity) FullName() string {
	switch {
	case e.FirstName != "" && e.LastName != "":
		return e.FirstName + " " + e.LastName
	case e.FirstName != "":
		return e.FirstName
	default:
		return e.LastName
	}
}

// Empty reports whether the entity carries no identifying information.
func (e Entity) Empty() bool {
	return e.FirstName == "" && e.LastName == "" && e.Email == "" && e.EmployeeID == nil
}

// Store is an in-memory entity store with per-session slots plus the fallback
// slot. Per-session slots live in a bounded LRU; the fallback slot is pinned
// outside it. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	fallback  *Entity
	bySession *lru.Cache[string, Entity]
}

// NewStore creates a store holding at most capacity session slots. A
// non-positive capacity falls back to 1024.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1024
	}
	// lru.New only fails on non-positive size, which is guarded above.
	cache, err := lru.New[string, Entity](capacity)
	if err != nil {
		panic("session: creating LRU cache: " + err.Error())
	}
	return &Store{bySession: cache}
}

// Remember records the entity for the session and updates the fallback slot.
// Last write wins. Empty entities are ignored.
func (s *Store) Remember(sessionID string, entity Entity) {
	if entity.Empty() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := entity
	s.fallback = &e
	if sessionID != "" && sessionID != FallbackKey {
		s.bySession.Add(sessionID, entity)
	}
}

// Recall returns the entity for the session, falling back to the shared slot.
// The boolean reports whether anything was found.
func (s *Store) Recall(sessionID string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sessionID != "" && sessionID != FallbackKey {
		if e, ok := s.bySession.Get(sessionID); ok {
			return e, true
		}
	}
	if s.fallback != nil {
		return *s.fallback, true
	}
	return Entity{}, false
}

// Reset clears all session slots and the fallback slot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = nil
	s.bySession.Purge()
}

// Len returns the number of per-session slots currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySession.Len()
}

// EntityFromMetadata extracts an entity hint from a retrieved document's
// metadata. Recognized keys: first_name, last_name, email, employee_id. The
// boolean is false when none are present or employee_id fails to parse and
// nothing else is set.
func EntityFromMetadata(md map[string]string) (Entity, bool) {
	if len(md) == 0 {
		return Entity{}, false
	}

	e := Entity{
		FirstName: strings.TrimSpace(md["first_name"]),
		LastName:  strings.TrimSpace(md["last_name"]),
		Email:     strings.TrimSpace(md["email"]),
	}
	if raw := strings.TrimSpace(md["employee_id"]); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			e.EmployeeID = &id
		}
	}

	if e.Empty() {
		return Entity{}, false
	}
	return e, true
}
