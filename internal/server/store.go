package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one built agent configuration bound to a conversation context.
type Session struct {
	ID          string
	ModelID     string
	SkillIDs    []string
	HITLEnabled bool
	SandboxMap  map[string]bool
	CreatedAt   time.Time
}

// Action is one side-effecting tool invocation held back for approval.
type Action struct {
	SkillID string
	Args    map[string]interface{}
}

// Store is an in-memory session store. It also parks the actions of an
// interrupted turn until the approval decision arrives.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	pending  map[string][]Action
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		pending:  make(map[string][]Action),
	}
}

// Create registers a new session and returns it with a server-assigned id.
func (s *Store) Create(modelID string, skillIDs []string, hitl bool, sandbox map[string]bool) *Session {
	sess := &Session{
		ID:          uuid.NewString(),
		ModelID:     modelID,
		SkillIDs:    append([]string(nil), skillIDs...),
		HITLEnabled: hitl,
		SandboxMap:  sandbox,
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess
}

// Get looks up a session by id.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete removes a session and any parked actions. Reports whether the
// session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	delete(s.pending, id)
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ParkActions stores the actions of an interrupted turn, replacing any
// previously parked set.
func (s *Store) ParkActions(sessionID string, actions []Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[sessionID] = actions
}

// TakeActions removes and returns the parked actions for a session.
func (s *Store) TakeActions(sessionID string) ([]Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions, ok := s.pending[sessionID]
	delete(s.pending, sessionID)
	return actions, ok
}
