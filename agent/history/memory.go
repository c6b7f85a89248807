package history

import (
	"context"
	"sync"

	contractx "github.com/hoteldesk/concierge/agent/contract"
)

// InMemoryStore keeps transcripts in process memory. Used when no Redis store
// is configured and in tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]contractx.Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]contractx.Message)}
}

func (s *InMemoryStore) Load(ctx context.Context, sessionID string) ([]contractx.Message, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrHistoryNotFound
	}
	out := make([]contractx.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemoryStore) Save(ctx context.Context, sessionID string, msgs []contractx.Message) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	stored := make([]contractx.Message, len(msgs))
	copy(stored, msgs)
	s.mu.Lock()
	s.sessions[sessionID] = stored
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}
