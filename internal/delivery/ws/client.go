package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/usecase"
)

const (
	// Time allowed to write a message to the peer
	writeWait = domain.WriteWait

	// Time allowed to read the next pong message from the peer
	pongWait = domain.PongWait

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Time allowed to persist a socket message
	relayTimeout = 10 * time.Second
)

// Client represents a single websocket connection of an authenticated user
type Client struct {
	id     string
	UserID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient creates a new Client for userID
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     uuid.NewString(),
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.sendBuffer),
	}
}

// ID identifies the connection
func (c *Client) ID() string {
	return c.id
}

// Send queues msg without blocking. It reports false when the buffer is
// full or the connection is closing.
func (c *Client) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		// Buffer full
		return false
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Start runs the read and write pumps. It reports false when the hub is
// shutting down, in which case the caller owns closing the connection.
func (c *Client) Start() bool {
	if !c.hub.trackPumps(2) {
		return false
	}
	go func() {
		defer c.hub.pumps.Done()
		c.WritePump()
	}()
	go func() {
		defer c.hub.pumps.Done()
		c.ReadPump()
	}()
	return true
}

// ReadPump pumps events from the websocket connection to the relay
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug().Err(err).Str("conn_id", c.id).Msg("connection closed unexpectedly")
			}
			break
		}
		c.handle(message)
	}
}

// handle dispatches one client event. Events are handled in arrival order so
// a sender's messages are persisted in the order they were sent.
func (c *Client) handle(message []byte) {
	var incoming domain.Event
	if err := json.Unmarshal(message, &incoming); err != nil {
		c.sendError("malformed event")
		return
	}

	switch incoming.Event {
	case domain.EventSendMessage:
		var payload domain.SendMessagePayload
		if err := json.Unmarshal(incoming.Payload, &payload); err != nil {
			c.sendError("malformed send-message payload")
			return
		}
		c.relay(payload)
	default:
		c.sendError("unknown event: " + incoming.Event)
	}
}

func (c *Client) relay(payload domain.SendMessagePayload) {
	if c.hub.relay == nil {
		c.sendError("messaging unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(usecase.WithPath(c.hub.ctx, usecase.PathSocket), relayTimeout)
	defer cancel()

	msg, err := c.hub.relay.Relay(ctx, c.UserID, payload.RecipientID, payload.Message)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			err = domain.ErrPersistence
		}
		c.sendError(err.Error())
		return
	}
	c.sendEvent(domain.EventMessageSent, msg)
}

func (c *Client) sendEvent(name string, payload any) {
	data, err := domain.EncodeEvent(name, payload)
	if err != nil {
		c.hub.logger.Error().Err(err).Str("event", name).Msg("failed to encode event")
		return
	}
	c.Send(data)
}

func (c *Client) sendError(msg string) {
	c.sendEvent(domain.EventError, domain.ErrorPayload{Error: msg})
}

// WritePump pumps messages from the hub to the websocket connection. A frame
// may carry several events separated by newlines.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
