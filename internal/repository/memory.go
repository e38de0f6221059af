package repository

import (
	"context"
	"sync"
	"time"

	"analytics-agent/internal/domain"
)

type memoryConversation struct {
	messages     []domain.Message
	lastActivity time.Time
}

// MemoryStore keeps conversations in process memory. Reads and writes both
// count as activity; expired conversations are swept lazily on every read.
type MemoryStore struct {
	mu    sync.Mutex
	convs map[string]*memoryConversation
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		convs: make(map[string]*memoryConversation),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) AddMessages(_ context.Context, conversationID string, msgs []domain.Message) error {
	if err := checkID("AddMessages", conversationID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		conv = &memoryConversation{}
		s.convs[conversationID] = conv
	}
	conv.messages = append(conv.messages, msgs...)
	if over := len(conv.messages) - MaxMessages; over > 0 {
		conv.messages = append([]domain.Message(nil), conv.messages[over:]...)
	}
	conv.lastActivity = s.now()
	return nil
}

func (s *MemoryStore) GetHistory(_ context.Context, conversationID string, lastN int) ([]domain.Message, error) {
	if err := checkID("GetHistory", conversationID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, nil
	}
	conv.lastActivity = s.now()
	out := tail(conv.messages, window(lastN))
	return append([]domain.Message(nil), out...), nil
}

// sweep must be called with mu held.
func (s *MemoryStore) sweep() {
	cutoff := s.now().Add(-s.ttl)
	for id, conv := range s.convs {
		if conv.lastActivity.Before(cutoff) {
			delete(s.convs, id)
		}
	}
}

// Len reports the number of live conversations.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	return len(s.convs)
}

func (s *MemoryStore) Close() error { return nil }
