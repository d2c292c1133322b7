package session

import (
	"sync"
	"time"
)

// Session holds the mutable conversational context for one caller.
// Access the context bag through Store methods so concurrent dialog calls
// for the same id serialize their read-modify-write.
type Session struct {
	ID         string
	Context    map[string]any
	CreatedAt  time.Time
	LastActive time.Time

	mu     sync.Mutex
	closed bool
}

// Store keeps per-id sessions in memory. Different session ids never
// contend beyond the map lookup; same-id calls serialize on the session's
// own mutex.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an empty session store.
func New() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// getOrCreate returns the live session for id, replacing a closed one with a
// fresh session (ended sessions never resurrect their old context).
func (s *Store) getOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok {
		sess.mu.Lock()
		closed := sess.closed
		sess.mu.Unlock()
		if !closed {
			return sess
		}
	}

	now := time.Now()
	sess = &Session{
		ID:         id,
		Context:    make(map[string]any),
		CreatedAt:  now,
		LastActive: now,
	}
	s.sessions[id] = sess
	return sess
}

// WithSession runs fn with exclusive access to the session for id, creating
// the session if needed. fn may read and mutate the context bag freely.
func (s *Store) WithSession(id string, fn func(*Session)) {
	sess := s.getOrCreate(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	fn(sess)
	sess.LastActive = time.Now()
}

// Update merges a patch into the session context, last-write-wins per key.
func (s *Store) Update(id string, patch map[string]any) {
	s.WithSession(id, func(sess *Session) {
		for k, v := range patch {
			sess.Context[k] = v
		}
	})
}

// Snapshot returns a copy of the session context bag, or false if no open
// session exists for id.
func (s *Store) Snapshot(id string) (map[string]any, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, false
	}
	out := make(map[string]any, len(sess.Context))
	for k, v := range sess.Context {
		out[k] = v
	}
	return out, true
}

// End closes the session for id. Returns false if no open session existed.
// A later WithSession/Update on the same id starts from an empty context.
func (s *Store) End(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return false
	}
	sess.closed = true
	return true
}

// EndIdle closes every session whose last activity is older than idle and
// returns the ids that were closed. Used by the background reaper.
func (s *Store) EndIdle(idle time.Duration) []string {
	cutoff := time.Now().Add(-idle)

	s.mu.Lock()
	var stale []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if !sess.closed && sess.LastActive.Before(cutoff) {
			stale = append(stale, id)
		}
		sess.mu.Unlock()
	}
	s.mu.Unlock()

	var ended []string
	for _, id := range stale {
		if s.End(id) {
			ended = append(ended, id)
		}
	}
	return ended
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ActiveIDs returns ids of all open sessions.
func (s *Store) ActiveIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
