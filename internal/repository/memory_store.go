package repository

import (
	"sync"

	"standup-bot/internal/domain"
)

// MemoryStore holds active conversations keyed by user id.
// It is safe for concurrent use. Values go in and come out as copies.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]domain.Conversation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]domain.Conversation)}
}

func (s *MemoryStore) Get(userID string) (domain.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.convs[userID]
	if !ok {
		return domain.Conversation{}, false
	}
	return c.Clone(), true
}

func (s *MemoryStore) Put(c domain.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.convs[c.UserID] = c.Clone()
}

func (s *MemoryStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.convs, userID)
}

// Len reports the number of active conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}
