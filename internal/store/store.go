// Package store persists direct messages and the user directory.
package store

import (
	"context"
	"net/url"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// MessageStore is the append-only message log.
type MessageStore interface {
	// SaveMessage persists msg, assigning ID (and CreatedAt when zero).
	SaveMessage(ctx context.Context, msg *domain.Message) error
	// Conversation returns every message exchanged between userA and userB in
	// either direction, oldest first. It returns an empty slice when none exist.
	Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error)
}

// UserDirectory lists known conversation partners.
type UserDirectory interface {
	UpsertUser(ctx context.Context, user domain.User) error
	// ListUsers returns all users except excludeID, ordered by name then id.
	ListUsers(ctx context.Context, excludeID string) ([]domain.User, error)
}

// DataStore defines the interface for persistent storage of messages and users.
// MemoryStore, BadgerStore, SQLiteStore, PostgresStore and RedisStore implement it.
type DataStore interface {
	MessageStore
	UserDirectory

	// Connection management
	Ping(ctx context.Context) error
	Close() error
}

// prepareMessage fills the generated fields of a new message.
func prepareMessage(msg *domain.Message) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
}

// conversationKey returns an order-independent key for the pair of users.
func conversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return url.QueryEscape(a) + ":" + url.QueryEscape(b)
}

// sortMessages orders messages by creation time, then by id.
func sortMessages(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

// sortUsers orders users by name, then by id.
func sortUsers(users []domain.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
}
