package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// runContract exercises the behaviour every DataStore must share.
func runContract(t *testing.T, open func(t *testing.T) DataStore) {
	t.Run("save assigns id and keeps created at", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()

		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		msg := &domain.Message{SenderID: "alice", ReceiverID: "bob", Text: "hi", CreatedAt: at}
		req.NoError(s.SaveMessage(ctx, msg))
		req.NotEmpty(msg.ID)

		got, err := s.Conversation(ctx, "alice", "bob")
		req.NoError(err)
		req.Len(got, 1)
		req.Equal(*msg, got[0])
	})

	t.Run("conversation is the ordered union of both directions", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

		inputs := []*domain.Message{
			{SenderID: "bob", ReceiverID: "alice", Text: "third", CreatedAt: base.Add(3 * time.Second)},
			{SenderID: "alice", ReceiverID: "bob", Text: "first", CreatedAt: base.Add(1 * time.Second)},
			{SenderID: "alice", ReceiverID: "carol", Text: "elsewhere", CreatedAt: base.Add(2 * time.Second)},
			{SenderID: "alice", ReceiverID: "bob", Text: "second", CreatedAt: base.Add(2 * time.Second)},
		}
		for _, m := range inputs {
			req.NoError(s.SaveMessage(ctx, m))
		}

		got, err := s.Conversation(ctx, "bob", "alice")
		req.NoError(err)
		req.Len(got, 3)
		req.Equal([]string{"first", "second", "third"}, texts(got))
		for i := 1; i < len(got); i++ {
			req.False(got[i].CreatedAt.Before(got[i-1].CreatedAt))
		}
		for _, m := range got {
			req.True(m.Involves("alice", "bob"))
		}
	})

	t.Run("empty conversation is an empty slice", func(t *testing.T) {
		got, err := open(t).Conversation(context.Background(), "nobody", "else")
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Empty(t, got)
	})

	t.Run("users are listed without the caller", func(t *testing.T) {
		req := require.New(t)
		s := open(t)
		ctx := context.Background()

		req.NoError(s.UpsertUser(ctx, domain.User{ID: "u2", Name: "Bob"}))
		req.NoError(s.UpsertUser(ctx, domain.User{ID: "u1", Name: "Alice"}))
		req.NoError(s.UpsertUser(ctx, domain.User{ID: "u3", Name: "Carol"}))
		req.NoError(s.UpsertUser(ctx, domain.User{ID: "u2", Name: "Bobby", Avatar: "https://cdn.example.com/b.png"}))

		users, err := s.ListUsers(ctx, "u3")
		req.NoError(err)
		req.Equal([]domain.User{
			{ID: "u1", Name: "Alice"},
			{ID: "u2", Name: "Bobby", Avatar: "https://cdn.example.com/b.png"},
		}, users)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, open(t).Ping(context.Background()))
	})
}

func texts(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	runContract(t, func(t *testing.T) DataStore {
		return NewMemoryStore()
	})
}

func TestBadgerStore(t *testing.T) {
	runContract(t, func(t *testing.T) DataStore {
		s, err := NewBadgerStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	runContract(t, func(t *testing.T) DataStore {
		s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "dm.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestInstrumentedStore(t *testing.T) {
	runContract(t, func(t *testing.T) DataStore {
		return WithMetrics(NewMemoryStore())
	})
}

func TestConversationKeyIsOrderIndependent(t *testing.T) {
	require.Equal(t, conversationKey("a", "b"), conversationKey("b", "a"))
	require.NotEqual(t, conversationKey("a:b", "c"), conversationKey("a", "b:c"))
}

func TestPrepareMessage(t *testing.T) {
	req := require.New(t)
	msg := &domain.Message{}
	prepareMessage(msg)
	req.NotEmpty(msg.ID)
	req.False(msg.CreatedAt.IsZero())
	req.Equal(msg.CreatedAt, msg.CreatedAt.Truncate(time.Millisecond))

	kept := &domain.Message{ID: "fixed"}
	prepareMessage(kept)
	req.Equal("fixed", kept.ID)
}
