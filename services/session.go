package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Ansab-Sultan/DocQuery-AI/models"
)

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateRebuilding
	stateActive
)

// SessionStore holds the single conversational session: the current vector
// index and the transcript built against it. Each successful ingestion
// replaces both, so answers never mix document sets.
type SessionStore struct {
	mu        sync.Mutex
	state     sessionState
	sessionID string
	index     *VectorIndex
	history   []models.ConversationTurn

	// stashed while a rebuild is in flight so an aborted rebuild can
	// restore the previous session untouched
	prevState sessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{state: stateUninitialized}
}

// BeginRebuild marks the session as rebuilding. Questions are rejected until
// CompleteRebuild or AbortRebuild is called. A second concurrent rebuild is
// refused.
func (s *SessionStore) BeginRebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateRebuilding {
		return ErrSessionRebuilding
	}
	s.prevState = s.state
	s.state = stateRebuilding
	return nil
}

// CompleteRebuild installs the freshly built index, clears the transcript and
// starts a new session identity.
func (s *SessionStore) CompleteRebuild(index *VectorIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = index
	s.history = nil
	s.sessionID = uuid.NewString()
	s.state = stateActive
}

// AbortRebuild restores whatever session existed before BeginRebuild.
func (s *SessionStore) AbortRebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateRebuilding {
		s.state = s.prevState
	}
}

// Index returns the active index and the session identity it belongs to, or
// an error describing why questions cannot be answered right now. Callers
// hand the identity back to AppendExchange so results computed against a
// since-replaced index are not recorded.
func (s *SessionStore) Index() (*VectorIndex, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateActive:
		return s.index, s.sessionID, nil
	case stateRebuilding:
		return nil, "", ErrSessionRebuilding
	default:
		return nil, "", ErrNoActiveSession
	}
}

// History returns a copy of the stored transcript.
func (s *SessionStore) History() []models.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ConversationTurn, len(s.history))
	copy(out, s.history)
	return out
}

// AppendExchange records one question/answer pair atomically, trimming the
// transcript to at most maxTurns turns. sessionID is the identity obtained
// from Index when the exchange began; if the session has been replaced or is
// not active, the exchange belongs to a dead transcript and is dropped.
func (s *SessionStore) AppendExchange(sessionID, question, answer string, maxTurns int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateActive {
		return ErrNoActiveSession
	}
	if sessionID != s.sessionID {
		return ErrSessionReplaced
	}
	s.history = append(s.history,
		models.ConversationTurn{Role: models.RoleUser, Content: question},
		models.ConversationTurn{Role: models.RoleAssistant, Content: answer},
	)
	if maxTurns > 0 && len(s.history) > maxTurns {
		s.history = s.history[len(s.history)-maxTurns:]
	}
	return nil
}

// SessionID identifies the current document set, empty before the first
// successful ingestion.
func (s *SessionStore) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}
