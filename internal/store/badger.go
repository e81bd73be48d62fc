package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// BadgerStore persists messages in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a BadgerDB at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// messagePrefix returns the key prefix of a conversation.
func messagePrefix(a, b string) string {
	return fmt.Sprintf("msg:%s:", conversationKey(a, b))
}

// messageKey is formatted as "msg:{conversation}:{unixnano padded}:{id}" so a
// prefix scan yields the conversation in chronological order. The id breaks
// ties between messages created in the same nanosecond.
func messageKey(msg *domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s",
		messagePrefix(msg.SenderID, msg.ReceiverID),
		msg.CreatedAt.UnixNano(),
		msg.ID,
	))
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

// SaveMessage persists msg.
func (s *BadgerStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepareMessage(msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), data)
	})
}

// Conversation scans the conversation prefix.
func (s *BadgerStore) Conversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0)
	prefix := []byte(messagePrefix(userA, userB))
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(val, &msg); err != nil {
					return err
				}
				msgs = append(msgs, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortMessages(msgs)
	return msgs, nil
}

// UpsertUser stores user under its id.
func (s *BadgerStore) UpsertUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.ID), data)
	})
}

// ListUsers scans the user prefix.
func (s *BadgerStore) ListUsers(ctx context.Context, excludeID string) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	users := make([]domain.User, 0)
	prefix := []byte("user:")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var u domain.User
				if err := json.Unmarshal(val, &u); err != nil {
					return err
				}
				if u.ID != excludeID {
					users = append(users, u)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortUsers(users)
	return users, nil
}

// Ping reports whether the database is still open.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return ctx.Err()
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
