// Package ws carries live events between the server and connected users.
package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/metrics"
	"github.com/mmuslimabdulj/goat-dm/internal/presence"
)

// Registry is the presence registry the hub keeps in sync with its clients.
type Registry interface {
	Register(userID string, h presence.Handle)
	Release(userID string, h presence.Handle) bool
}

// Relay handles messages sent over a socket.
type Relay interface {
	Relay(ctx context.Context, senderID, receiverID, text string) (domain.Message, error)
}

// Hub maintains the set of live connections. It attaches them to the
// presence registry and fans presence changes out to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once

	// lifecycle guards closing so pumps.Add never races pumps.Wait
	lifecycle sync.Mutex
	closing   bool
	pumps     sync.WaitGroup

	// Base context for socket sends, cancelled on shutdown
	ctx    context.Context
	cancel context.CancelFunc

	registry Registry
	relay    Relay
	logger   zerolog.Logger

	sendBuffer     int
	maxMessageSize int64
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:        make(map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		quit:           make(chan struct{}),
		stopped:        make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		logger:         logger,
		sendBuffer:     domain.SendBufferSize,
		maxMessageSize: domain.MaxMessageSize,
	}
}

// SetRegistry sets the presence registry clients are attached to
func (h *Hub) SetRegistry(r Registry) {
	h.registry = r
}

// SetRelay sets the handler for send-message events
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// SetLimits overrides the per-connection buffer and frame size
func (h *Hub) SetLimits(sendBuffer int, maxMessageSize int64) {
	if sendBuffer > 0 {
		h.sendBuffer = sendBuffer
	}
	if maxMessageSize > 0 {
		h.maxMessageSize = maxMessageSize
	}
}

// Run starts the hub's main event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.attach(client)
		case client := <-h.unregister:
			h.detach(client)
		case <-h.quit:
			h.detachAll()
			return
		}
	}
}

// Register hands a new client to the run loop. It reports false once the
// hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	h.mu.Unlock()

	h.logger.Debug().Str("conn_id", c.ID()).Str("user_id", c.UserID).Msg("client connected")

	// Registry broadcasts back into PresenceChanged, so h.mu must be free here
	if h.registry != nil {
		h.registry.Register(c.UserID, c)
	}
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID()]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID())
	h.mu.Unlock()

	h.logger.Debug().Str("conn_id", c.ID()).Str("user_id", c.UserID).Msg("client disconnected")

	if h.registry != nil {
		h.registry.Release(c.UserID, c)
	}
	c.close()
}

func (h *Hub) detachAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if h.registry != nil {
			h.registry.Release(c.UserID, c)
		}
		c.close()
	}
}

// PresenceChanged sends the online list to every live connection,
// including ones that were superseded by a newer registration.
func (h *Hub) PresenceChanged(online []string) {
	metrics.OnlineUsers.Set(float64(len(online)))
	metrics.PresenceBroadcasts.Inc()

	data, err := domain.EncodeEvent(domain.EventOnlineUsers, online)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode presence event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Send(data)
	}
}

// trackPumps reserves n connection goroutines. It reports false once
// Shutdown has started.
func (h *Hub) trackPumps(n int) bool {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	if h.closing {
		return false
	}
	h.pumps.Add(n)
	return true
}

// Shutdown stops the run loop, closes every connection and waits for the
// connection goroutines to exit or ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.stopOnce.Do(func() {
		h.lifecycle.Lock()
		h.closing = true
		close(h.quit)
		h.lifecycle.Unlock()
		h.cancel()
	})

	select {
	case <-h.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("hub shutdown completed")
		return nil
	case <-ctx.Done():
		h.logger.Warn().Msg("hub shutdown timed out, some connections may still be open")
		return ctx.Err()
	}
}
