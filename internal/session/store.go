// Package session holds the in-memory view of every chat session's turn
// log. The store is an advisory cache of the on-chain log: for any session
// the local turns are a prefix of the authoritative remote sequence.
// Lifetime is the process lifetime; nothing is persisted or evicted.
package session

import (
	"sync"

	"chainchat/go-backend/pkg/models"
)

type Store struct {
	mu    sync.RWMutex
	turns map[string][]models.Turn
}

func NewStore() *Store {
	return &Store{turns: make(map[string][]models.Turn)}
}

// Get returns a copy of the session's turn log. Unknown ids yield an
// empty log, never an error.
func (s *Store) Get(sessionID string) []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Turn(nil), s.turns[sessionID]...)
}

// Len reports the number of locally known turns; the poller uses it as
// its cursor into the remote log.
func (s *Store) Len(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[sessionID])
}

func (s *Store) Append(sessionID string, turn models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append(s.turns[sessionID], turn)
}

// Replace swaps the session's whole log for the given sequence.
func (s *Store) Replace(sessionID string, turns []models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append([]models.Turn(nil), turns...)
}
