package store

import (
	"context"
	"sync"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// MemoryStore keeps everything in process memory. It is the default driver
// for development and the backing store of most tests.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]domain.Message
	users         map[string]domain.User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string][]domain.Message),
		users:         make(map[string]domain.User),
	}
}

// SaveMessage appends msg to its conversation.
func (s *MemoryStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepareMessage(msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	key := conversationKey(msg.SenderID, msg.ReceiverID)
	s.conversations[key] = append(s.conversations[key], *msg)
	return nil
}

// Conversation returns a sorted copy of the conversation between a and b.
func (s *MemoryStore) Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	stored := s.conversations[conversationKey(userA, userB)]
	msgs := make([]domain.Message, len(stored))
	copy(msgs, stored)
	s.mu.RUnlock()

	sortMessages(msgs)
	return msgs, nil
}

// UpsertUser records or refreshes a user.
func (s *MemoryStore) UpsertUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

// ListUsers returns every user except excludeID.
func (s *MemoryStore) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	users := make([]domain.User, 0, len(s.users))
	for id, u := range s.users {
		if id != excludeID {
			users = append(users, u)
		}
	}
	s.mu.RUnlock()

	sortUsers(users)
	return users, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
