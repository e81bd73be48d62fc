// Package client talks to the goat-dm server: the message REST endpoints and
// the live websocket channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
)

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("goat-dm: %d %s", e.Status, e.Message)
}

// Client calls the server on behalf of one signed-in user.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	dialer *websocket.Dialer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a Client for the server at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:   u,
		token:  token,
		http:   &http.Client{Timeout: 15 * time.Second},
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base.String() + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Users lists conversation partners.
func (c *Client) Users(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.do(ctx, http.MethodGet, c.endpoint("messages", "users"), nil, http.StatusOK, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// History returns the conversation with partnerID, oldest first.
func (c *Client) History(ctx context.Context, partnerID string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := c.do(ctx, http.MethodGet, c.endpoint("messages", partnerID), nil, http.StatusOK, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Send posts text to partnerID and returns the stored message.
func (c *Client) Send(ctx context.Context, partnerID, text string) (domain.Message, error) {
	var msg domain.Message
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, c.endpoint("messages", "send", partnerID), body, http.StatusCreated, &msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Handler receives live events. chatview.Store satisfies it.
type Handler interface {
	HandleMessage(msg domain.Message)
	HandlePresence(online []string)
}

// AckHandler is implemented by handlers that want socket send results.
type AckHandler interface {
	HandleAck(msg domain.Message)
	HandleError(message string)
}

// Conn is a live connection. It does not reconnect; history fetched after a
// new Dial covers anything missed.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// Dial opens the live channel.
func (c *Client) Dial(ctx context.Context) (*Conn, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {c.token}}.Encode()

	ws, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: err.Error()}
		}
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

// Listen dispatches events to h until the connection closes or ctx ends.
func (c *Conn) Listen(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() { c.ws.Close() })
	defer stop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		// One frame may carry several newline-separated events
		for _, raw := range bytes.Split(data, []byte{'\n'}) {
			if len(raw) == 0 {
				continue
			}
			if err := dispatch(raw, h); err != nil {
				return err
			}
		}
	}
}

func dispatch(raw []byte, h Handler) error {
	var ev domain.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("client: decode event: %w", err)
	}

	ack, _ := h.(AckHandler)
	switch ev.Event {
	case domain.EventNewMessage:
		var msg domain.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return fmt.Errorf("client: decode message: %w", err)
		}
		h.HandleMessage(msg)
	case domain.EventOnlineUsers:
		var online []string
		if err := json.Unmarshal(ev.Payload, &online); err != nil {
			return fmt.Errorf("client: decode presence: %w", err)
		}
		h.HandlePresence(online)
	case domain.EventMessageSent:
		if ack == nil {
			return nil
		}
		var msg domain.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return fmt.Errorf("client: decode ack: %w", err)
		}
		ack.HandleAck(msg)
	case domain.EventError:
		if ack == nil {
			return nil
		}
		var p domain.ErrorPayload
		json.Unmarshal(ev.Payload, &p)
		ack.HandleError(p.Error)
	}
	return nil
}

// SendMessage emits a send-message event.
func (c *Conn) SendMessage(recipientID, text string) error {
	data, err := domain.EncodeEvent(domain.EventSendMessage, domain.SendMessagePayload{
		RecipientID: recipientID,
		Message:     text,
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(domain.WriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}
