// Package chatview is the client-side view model of the direct-message
// screen: the selected conversation, its messages and the partner list with
// presence and unread counters.
package chatview

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// State of the selected conversation.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Sending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Sending:
		return "sending"
	default:
		return "unknown"
	}
}

// ErrNotReady is returned by Send when no conversation is loaded or a send
// is already in flight.
var ErrNotReady = errors.New("chatview: conversation not ready")

// API is the server side of the view model.
type API interface {
	History(ctx context.Context, partnerID string) ([]domain.Message, error)
	Send(ctx context.Context, partnerID, text string) (domain.Message, error)
}

// Conversation is one entry of the partner list.
type Conversation struct {
	Partner     domain.User
	LastMessage *domain.Message
	Unread      int
	Online      bool
}

// Store holds the view state. All methods are safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	self string
	api  API

	state    State
	partner  string
	messages []domain.Message
	pending  []domain.Message
	gen      uint64
	err      error

	seen    map[string]struct{}
	entries map[string]*Conversation
	order   []string
	online  map[string]bool

	onChange func()
}

// New creates a Store for the signed-in user self.
func New(self string, api API) *Store {
	return &Store{
		self:    self,
		api:     api,
		seen:    make(map[string]struct{}),
		entries: make(map[string]*Conversation),
		online:  make(map[string]bool),
	}
}

// OnChange registers fn to be called after every state change. fn runs
// without the store lock held.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Select opens the conversation with partnerID and loads its history. A
// result that arrives after another Select is discarded.
func (s *Store) Select(ctx context.Context, partnerID string) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = Loading
	s.partner = partnerID
	s.messages = nil
	s.pending = nil
	s.err = nil
	s.entry(partnerID).Unread = 0
	s.mu.Unlock()
	s.changed()

	history, err := s.api.History(ctx, partnerID)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.state = Idle
		s.err = err
		s.pending = nil
		s.mu.Unlock()
		s.changed()
		return err
	}

	s.messages = mergeHistory(history, s.pending)
	s.pending = nil
	for _, m := range s.messages {
		s.seen[m.ID] = struct{}{}
	}
	if n := len(s.messages); n > 0 {
		s.setLast(partnerID, s.messages[n-1])
	}
	s.state = Ready
	s.mu.Unlock()
	s.changed()
	return nil
}

// mergeHistory appends live messages that the fetched history does not
// already contain.
func mergeHistory(history, live []domain.Message) []domain.Message {
	merged := make([]domain.Message, 0, len(history)+len(live))
	ids := make(map[string]struct{}, len(history))
	for _, m := range history {
		ids[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range live {
		if _, ok := ids[m.ID]; !ok {
			merged = append(merged, m)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.Before(merged[j].CreatedAt)
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}

// Send posts text to the selected partner and appends the stored message
// once the server returns it.
func (s *Store) Send(ctx context.Context, text string) (domain.Message, error) {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return domain.Message{}, ErrNotReady
	}
	s.state = Sending
	partner, gen := s.partner, s.gen
	s.mu.Unlock()
	s.changed()

	msg, err := s.api.Send(ctx, partner, text)

	s.mu.Lock()
	current := gen == s.gen
	if err != nil {
		if current {
			s.state = Ready
			s.err = err
		}
		s.mu.Unlock()
		s.changed()
		return domain.Message{}, err
	}

	if _, dup := s.seen[msg.ID]; !dup {
		s.seen[msg.ID] = struct{}{}
		if current {
			s.messages = append(s.messages, msg)
		}
	}
	s.setLast(partner, msg)
	if current {
		s.state = Ready
	}
	s.mu.Unlock()
	s.changed()
	return msg, nil
}

// HandleMessage applies a message pushed over the live channel.
func (s *Store) HandleMessage(msg domain.Message) {
	s.mu.Lock()
	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = struct{}{}

	peer := msg.Peer(s.self)
	open := false
	if peer == s.partner {
		switch s.state {
		case Loading:
			s.pending = append(s.pending, msg)
			open = true
		case Ready, Sending:
			s.messages = append(s.messages, msg)
			open = true
		}
	}

	s.setLast(peer, msg)
	if !open && msg.SenderID != s.self {
		s.entry(peer).Unread++
	}
	s.mu.Unlock()
	s.changed()
}

// HandlePresence replaces the set of online users.
func (s *Store) HandlePresence(ids []string) {
	online := make(map[string]bool, len(ids))
	for _, id := range ids {
		online[id] = true
	}
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()
	s.changed()
}

// SetPartners seeds the conversation list, keeping counters of known entries.
func (s *Store) SetPartners(users []domain.User) {
	s.mu.Lock()
	for _, u := range users {
		if u.ID == s.self {
			continue
		}
		s.entry(u.ID).Partner = u
	}
	s.mu.Unlock()
	s.changed()
}

// NOTE: Caller must hold s.mu
func (s *Store) entry(id string) *Conversation {
	c, ok := s.entries[id]
	if !ok {
		c = &Conversation{Partner: domain.User{ID: id}}
		s.entries[id] = c
		s.order = append(s.order, id)
	}
	return c
}

// NOTE: Caller must hold s.mu
func (s *Store) setLast(peer string, msg domain.Message) {
	c := s.entry(peer)
	if c.LastMessage == nil || !msg.CreatedAt.Before(c.LastMessage.CreatedAt) {
		m := msg
		c.LastMessage = &m
	}
}

// Conversations returns the partner list, most recent activity first.
func (s *Store) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Conversation, 0, len(s.order))
	for _, id := range s.order {
		c := *s.entries[id]
		if c.LastMessage != nil {
			m := *c.LastMessage
			c.LastMessage = &m
		}
		c.Online = s.online[id]
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		switch {
		case a == nil || b == nil:
			return a != nil && b == nil
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return out
}

// State returns the state of the selected conversation.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Partner returns the selected partner id.
func (s *Store) Partner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partner
}

// Messages returns a copy of the selected conversation.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Err returns the last load or send error.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ClearErr dismisses the last error.
func (s *Store) ClearErr() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	s.changed()
}

// IsOnline reports whether id is in the last presence set.
func (s *Store) IsOnline(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[id]
}
