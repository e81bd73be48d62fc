package chatview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

type fakeAPI struct {
	mu      sync.Mutex
	history map[string][]domain.Message
	histErr error
	sendErr error
	gate    chan struct{} // when set, History waits for a value
	next    int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{history: make(map[string][]domain.Message)}
}

func (f *fakeAPI) History(ctx context.Context, partnerID string) ([]domain.Message, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	out := make([]domain.Message, len(f.history[partnerID]))
	copy(out, f.history[partnerID])
	return out, nil
}

func (f *fakeAPI) Send(_ context.Context, partnerID, text string) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return domain.Message{}, f.sendErr
	}
	f.next++
	return msgAt("sent-"+fmt.Sprint(f.next), "me", partnerID, text, 100+f.next), nil
}

var base = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func msgAt(id, from, to, text string, sec int) domain.Message {
	return domain.Message{ID: id, SenderID: from, ReceiverID: to, Text: text, CreatedAt: base.Add(time.Duration(sec) * time.Second)}
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestSelectLoadsHistory(t *testing.T) {
	req := require.New(t)
	api := newFakeAPI()
	api.history["bob"] = []domain.Message{msgAt("1", "bob", "me", "hi", 1), msgAt("2", "me", "bob", "hey", 2)}
	s := New("me", api)
	req.Equal(Idle, s.State())

	req.NoError(s.Select(context.Background(), "bob"))
	req.Equal(Ready, s.State())
	req.Equal("bob", s.Partner())
	req.Equal([]string{"1", "2"}, ids(s.Messages()))

	convs := s.Conversations()
	req.Len(convs, 1)
	req.Equal("2", convs[0].LastMessage.ID)
}

func TestSelectErrorRevertsToIdle(t *testing.T) {
	req := require.New(t)
	api := newFakeAPI()
	api.histErr = errors.New("offline")
	s := New("me", api)

	req.Error(s.Select(context.Background(), "bob"))
	req.Equal(Idle, s.State())
	req.EqualError(s.Err(), "offline")
	req.Empty(s.Messages())

	s.ClearErr()
	req.NoError(s.Err())
}

func TestStaleSelectIsDiscarded(t *testing.T) {
	req := require.New(t)
	api := newFakeAPI()
	api.history["bob"] = []domain.Message{msgAt("b1", "bob", "me", "from bob", 1)}
	api.history["carol"] = []domain.Message{msgAt("c1", "carol", "me", "from carol", 1)}
	api.gate = make(chan struct{})
	s := New("me", api)

	done := make(chan error, 1)
	go func() { done <- s.Select(context.Background(), "bob") }()
	require.Eventually(t, func() bool { return s.State() == Loading }, time.Second, time.Millisecond)

	go func() { done <- s.Select(context.Background(), "carol") }()
	require.Eventually(t, func() bool { return s.Partner() == "carol" }, time.Second, time.Millisecond)

	api.gate <- struct{}{}
	api.gate <- struct{}{}
	req.NoError(<-done)
	req.NoError(<-done)

	req.Equal("carol", s.Partner())
	req.Equal(Ready, s.State())
	req.Equal([]string{"c1"}, ids(s.Messages()))
}

func TestMessagesDuringLoadAreMerged(t *testing.T) {
	req := require.New(t)
	api := newFakeAPI()
	api.history["bob"] = []domain.Message{msgAt("1", "bob", "me", "old", 1), msgAt("2", "bob", "me", "dup", 2)}
	api.gate = make(chan struct{})
	s := New("me", api)

	done := make(chan error, 1)
	go func() { done <- s.Select(context.Background(), "bob") }()
	require.Eventually(t, func() bool { return s.State() == Loading }, time.Second, time.Millisecond)

	// One already in history, one newer
	s.HandleMessage(msgAt("2", "bob", "me", "dup", 2))
	s.HandleMessage(msgAt("3", "bob", "me", "new", 3))
	api.gate <- struct{}{}
	req.NoError(<-done)

	req.Equal([]string{"1", "2", "3"}, ids(s.Messages()))
	req.Equal(0, s.Conversations()[0].Unread)
}

func TestSendAppendsReturnedMessage(t *testing.T) {
	req := require.New(t)
	api := newFakeAPI()
	s := New("me", api)
	req.NoError(s.Select(context.Background(), "bob"))

	msg, err := s.Send(context.Background(), "hello")
	req.NoError(err)
	req.Equal(Ready, s.State())
	req.Equal([]string{msg.ID}, ids(s.Messages()))

	// The same record echoed over the socket is ignored
	s.HandleMessage(msg)
	req.Len(s.Messages(), 1)
}

func TestSendErrorKeepsMessages(t *testing.T) {
	req := require.New(t)
	api := newFakeAPI()
	api.history["bob"] = []domain.Message{msgAt("1", "bob", "me", "hi", 1)}
	s := New("me", api)
	req.NoError(s.Select(context.Background(), "bob"))

	api.sendErr = errors.New("422 too long")
	_, err := s.Send(context.Background(), "x")
	req.Error(err)
	req.Equal(Ready, s.State())
	req.EqualError(s.Err(), "422 too long")
	req.Equal([]string{"1"}, ids(s.Messages()))
}

func TestSendRequiresReady(t *testing.T) {
	_, err := New("me", newFakeAPI()).Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrNotReady)
}

func TestHandleMessageForOtherConversation(t *testing.T) {
	req := require.New(t)
	s := New("me", newFakeAPI())
	s.SetPartners([]domain.User{{ID: "bob", Name: "Bob"}, {ID: "carol", Name: "Carol"}, {ID: "me"}})
	req.NoError(s.Select(context.Background(), "bob"))

	s.HandleMessage(msgAt("c1", "carol", "me", "psst", 5))
	s.HandleMessage(msgAt("c1", "carol", "me", "psst", 5))
	s.HandleMessage(msgAt("c2", "carol", "me", "again", 6))
	req.Empty(s.Messages())

	convs := s.Conversations()
	req.Len(convs, 2)
	req.Equal("carol", convs[0].Partner.ID)
	req.Equal("Carol", convs[0].Partner.Name)
	req.Equal(2, convs[0].Unread)
	req.Equal("c2", convs[0].LastMessage.ID)
	req.Equal("bob", convs[1].Partner.ID)

	// Opening the conversation clears the counter
	req.NoError(s.Select(context.Background(), "carol"))
	req.Equal(0, s.Conversations()[0].Unread)
}

func TestHandleMessageAppendsToOpenConversation(t *testing.T) {
	req := require.New(t)
	s := New("me", newFakeAPI())
	req.NoError(s.Select(context.Background(), "bob"))

	s.HandleMessage(msgAt("1", "bob", "me", "hi", 1))
	req.Equal([]string{"1"}, ids(s.Messages()))
	req.Equal(0, s.Conversations()[0].Unread)
}

func TestHandlePresence(t *testing.T) {
	req := require.New(t)
	s := New("me", newFakeAPI())
	s.SetPartners([]domain.User{{ID: "bob"}, {ID: "carol"}})

	s.HandlePresence([]string{"bob", "me"})
	req.True(s.IsOnline("bob"))
	req.False(s.IsOnline("carol"))

	online := map[string]bool{}
	for _, c := range s.Conversations() {
		online[c.Partner.ID] = c.Online
	}
	req.Equal(map[string]bool{"bob": true, "carol": false}, online)

	s.HandlePresence(nil)
	req.False(s.IsOnline("bob"))
}

func TestOnChange(t *testing.T) {
	s := New("me", newFakeAPI())
	var calls int
	s.OnChange(func() {
		calls++
		// Reading state from the callback must not deadlock
		_ = s.State()
	})

	s.HandlePresence([]string{"bob"})
	require.NoError(t, s.Select(context.Background(), "bob"))
	require.GreaterOrEqual(t, calls, 3)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "loading", Loading.String())
	require.Equal(t, "ready", Ready.String())
	require.Equal(t, "sending", Sending.String())
}
