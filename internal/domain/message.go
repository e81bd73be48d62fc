package domain

import (
	"encoding/json"
	"time"
)

// Live channel event names
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
	EventSendMessage = "send-message"
	EventMessageSent = "message-sent"
	EventError       = "error"
)

// Message is a persisted direct message between two users
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Involves reports whether the message belongs to the conversation between a and b
func (m Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Peer returns the other participant of the message as seen by userID
func (m Message) Peer(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Event is the envelope exchanged on the live channel in both directions
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SendMessagePayload is the client payload of a send-message event
type SendMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
}

// ErrorPayload is sent back to a socket client when its event could not be handled
type ErrorPayload struct {
	Error string `json:"error"`
}

// EncodeEvent marshals payload and wraps it in an Event envelope
func EncodeEvent(name string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: name, Payload: raw})
}
