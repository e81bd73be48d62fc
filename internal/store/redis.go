package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

const usersKey = "users"

// RedisStore keeps each conversation in a sorted set scored by creation time
// and the user directory in a hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// conversationMessagesKey returns the key for a conversation's sorted set.
func conversationMessagesKey(a, b string) string {
	return fmt.Sprintf("dm:%s:messages", conversationKey(a, b))
}

// SaveMessage adds msg to its conversation set.
func (s *RedisStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	prepareMessage(msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.client.ZAdd(ctx, conversationMessagesKey(msg.SenderID, msg.ReceiverID), redis.Z{
		Score:  float64(msg.CreatedAt.UnixMilli()),
		Member: string(data),
	}).Err()
}

// Conversation returns the whole sorted set, oldest first.
func (s *RedisStore) Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	results, err := s.client.ZRange(ctx, conversationMessagesKey(userA, userB), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0, len(results))
	for _, data := range results {
		var msg domain.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return nil, fmt.Errorf("redis: decode message: %w", err)
		}
		msgs = append(msgs, msg)
	}

	// Members sharing a millisecond score are ordered lexically by redis
	sortMessages(msgs)
	return msgs, nil
}

// UpsertUser stores user in the directory hash.
func (s *RedisStore) UpsertUser(ctx context.Context, user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, usersKey, user.ID, string(data)).Err()
}

// ListUsers returns all users except excludeID.
func (s *RedisStore) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	all, err := s.client.HGetAll(ctx, usersKey).Result()
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(all))
	for id, data := range all {
		if id == excludeID {
			continue
		}
		var u domain.User
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			return nil, fmt.Errorf("redis: decode user: %w", err)
		}
		users = append(users, u)
	}

	sortUsers(users)
	return users, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
