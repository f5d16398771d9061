package session

import (
	"sync"

	"github.com/hupe1980/agentbus/model"
)

// Store keeps ordered conversation history per conversation ID.
type Store interface {
	// Append adds messages to the end of the conversation's history.
	Append(id string, msgs ...model.Message) error

	// History returns the conversation's messages in order. An unknown ID
	// yields an empty slice, not an error.
	History(id string) ([]model.Message, error)

	// Clear removes the conversation's history.
	Clear(id string) error
}

// InMemoryStore is a process-local Store guarded by a mutex. Histories are
// copied on read so callers can mutate the returned slice freely.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]model.Message
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string][]model.Message),
	}
}

// Append adds messages to the conversation's history.
func (s *InMemoryStore) Append(id string, msgs ...model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = append(s.sessions[id], msgs...)

	return nil
}

// History returns a copy of the conversation's messages in order.
func (s *InMemoryStore) History(id string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[id]
	out := make([]model.Message, len(history))
	copy(out, history)

	return out, nil
}

// Clear removes the conversation's history.
func (s *InMemoryStore) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)

	return nil
}
