// Package usecase holds the messaging operations shared by the HTTP and
// websocket transports.
package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/metrics"
	"github.com/mmuslimabdulj/goat-dm/internal/presence"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
)

// Send paths, used as the metrics label of persisted messages.
const (
	PathHTTP   = "http"
	PathSocket = "socket"
)

// Locator finds the live connection of a user.
type Locator interface {
	Lookup(userID string) (presence.Handle, bool)
}

// Messenger persists direct messages and relays them to online recipients.
type Messenger struct {
	messages store.MessageStore
	users    store.UserDirectory
	presence Locator
	validate *validator.Validate
	logger   zerolog.Logger
	now      func() time.Time
	maxText  string
}

// Option configures a Messenger.
type Option func(*Messenger)

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Messenger) { m.now = now }
}

// WithMaxTextLength sets the maximum message length in runes.
func WithMaxTextLength(n int) Option {
	return func(m *Messenger) {
		if n > 0 {
			m.maxText = strconv.Itoa(n)
		}
	}
}

// NewMessenger creates a Messenger. users may be nil when no directory is kept.
func NewMessenger(messages store.MessageStore, users store.UserDirectory, locator Locator, logger zerolog.Logger, opts ...Option) *Messenger {
	m := &Messenger{
		messages: messages,
		users:    users,
		presence: locator,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
		maxText:  strconv.Itoa(domain.MaxTextLength),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Relay validates and persists a message from senderID to receiverID, then
// pushes it to the receiver if they are online. The returned record is the
// persisted one. Live delivery failures are never reported to the caller.
func (m *Messenger) Relay(ctx context.Context, senderID, receiverID, text string) (domain.Message, error) {
	msg, err := m.build(senderID, receiverID, text)
	if err != nil {
		return domain.Message{}, err
	}

	if err := m.messages.SaveMessage(ctx, &msg); err != nil {
		m.logger.Error().Err(err).
			Str("sender_id", msg.SenderID).
			Str("receiver_id", msg.ReceiverID).
			Msg("failed to persist message")
		return domain.Message{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	metrics.MessagesPersisted.WithLabelValues(pathFromContext(ctx)).Inc()

	m.deliver(msg)
	return msg, nil
}

func (m *Messenger) build(senderID, receiverID, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)

	if err := m.validate.Var(senderID, "required"); err != nil {
		return domain.Message{}, domain.ErrMissingSender
	}
	if err := m.validate.Var(receiverID, "required"); err != nil {
		return domain.Message{}, domain.ErrMissingRecipient
	}
	if err := m.validate.Var(text, "required"); err != nil {
		return domain.Message{}, domain.ErrEmptyText
	}
	// validator counts runes for strings
	if err := m.validate.Var(text, "max="+m.maxText); err != nil {
		return domain.Message{}, domain.ErrTextTooLong
	}

	return domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  m.now().UTC().Truncate(time.Millisecond),
	}, nil
}

// deliver pushes msg to the receiver's current connection, if any.
func (m *Messenger) deliver(msg domain.Message) {
	handle, ok := m.presence.Lookup(msg.ReceiverID)
	if !ok {
		metrics.LiveDeliveries.WithLabelValues(metrics.DeliveryOffline).Inc()
		return
	}

	data, err := domain.EncodeEvent(domain.EventNewMessage, msg)
	if err != nil {
		m.logger.Error().Err(err).Str("message_id", msg.ID).Msg("failed to encode message event")
		metrics.LiveDeliveries.WithLabelValues(metrics.DeliveryDropped).Inc()
		return
	}

	if !handle.Send(data) {
		m.logger.Debug().
			Str("message_id", msg.ID).
			Str("receiver_id", msg.ReceiverID).
			Str("conn_id", handle.ID()).
			Msg("live delivery dropped")
		metrics.LiveDeliveries.WithLabelValues(metrics.DeliveryDropped).Inc()
		return
	}
	metrics.LiveDeliveries.WithLabelValues(metrics.DeliveryDelivered).Inc()
}

// History returns the conversation between userA and userB, oldest first.
func (m *Messenger) History(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	if userA == "" || userB == "" {
		return []domain.Message{}, nil
	}
	msgs, err := m.messages.Conversation(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// Partners lists the users currentUser can open a conversation with.
func (m *Messenger) Partners(ctx context.Context, currentUser string) ([]domain.User, error) {
	if m.users == nil {
		return []domain.User{}, nil
	}
	users, err := m.users.ListUsers(ctx, currentUser)
	if err != nil {
		return nil, fmt.Errorf("partners: %w", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

type pathKey struct{}

// WithPath tags ctx with the transport a message was sent through.
func WithPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, pathKey{}, path)
}

func pathFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(pathKey{}).(string); ok && p != "" {
		return p
	}
	return PathHTTP
}
