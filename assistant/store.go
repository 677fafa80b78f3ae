package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultContextWindow is how many recent turns are included in prompts.
const DefaultContextWindow = 6

// session holds per-conversation state. The conversation store is the single
// writer of turns and currentQuery; all mutation goes through Store methods
// under the session lock.
type session struct {
	mu sync.Mutex

	id           string
	turns        []Turn
	currentQuery string
	lastIntent   Intent
	createdAt    time.Time
	updatedAt    time.Time
}

// Store owns all sessions. Operations on different sessions never block each
// other; operations on the same session serialize.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*session)}
}

// Create registers a new session and returns its id.
func (s *Store) Create() string {
	id := uuid.New().String()
	now := time.Now()

	s.mu.Lock()
	s.sessions[id] = &session{id: id, createdAt: now, updatedAt: now}
	s.mu.Unlock()

	return id
}

// Exists reports whether the session id is known.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

func (s *Store) lookup(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidSession
	}
	return sess, nil
}

// Append adds a turn to the session transcript. Turns are append-only and
// strictly ordered; nothing ever mutates or removes a prior turn short of
// a whole-session reset.
func (s *Store) Append(id string, turn Turn) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	sess.turns = append(sess.turns, turn)
	if turn.Role == RoleAssistant {
		sess.lastIntent = turn.Intent
	}
	sess.updatedAt = time.Now()
	return nil
}

// Context returns up to maxTurns most recent turns in chronological order.
// maxTurns <= 0 uses DefaultContextWindow.
func (s *Store) Context(id string, maxTurns int) ([]Turn, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if maxTurns <= 0 {
		maxTurns = DefaultContextWindow
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := len(sess.turns) - maxTurns
	if start < 0 {
		start = 0
	}
	return append([]Turn(nil), sess.turns[start:]...), nil
}

// Turns returns the full transcript.
func (s *Store) Turns(id string) ([]Turn, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]Turn(nil), sess.turns...), nil
}

// SetCurrentQuery replaces the session's bound query. Idempotent.
func (s *Store) SetCurrentQuery(id, text string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.currentQuery = text
	sess.updatedAt = time.Now()
	return nil
}

// CurrentQuery returns the session's bound query text (possibly empty).
func (s *Store) CurrentQuery(id string) (string, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return "", err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.currentQuery, nil
}

// LastIntent returns the intent of the most recent assistant turn.
func (s *Store) LastIntent(id string) (Intent, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return "", err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastIntent, nil
}

// Reset clears the session's turns and bound query. Calling it on an
// already-empty session is a no-op.
func (s *Store) Reset(id string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = nil
	sess.currentQuery = ""
	sess.lastIntent = ""
	sess.updatedAt = time.Now()
	return nil
}

// Prune removes sessions idle longer than maxIdle and returns how many were
// dropped. There is no persistence guarantee for sessions.
func (s *Store) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.updatedAt.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
