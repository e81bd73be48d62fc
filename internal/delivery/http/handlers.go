package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mmuslimabdulj/goat-dm/internal/auth"
	"github.com/mmuslimabdulj/goat-dm/internal/config"
	"github.com/mmuslimabdulj/goat-dm/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/middleware"
	"github.com/mmuslimabdulj/goat-dm/internal/usecase"
)

// Messenger is the messaging use case served over HTTP.
type Messenger interface {
	Relay(ctx context.Context, senderID, receiverID, text string) (domain.Message, error)
	History(ctx context.Context, userA, userB string) ([]domain.Message, error)
	Partners(ctx context.Context, currentUser string) ([]domain.User, error)
}

// Presence reports who is online.
type Presence interface {
	Count() int
}

// Pinger checks the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	cfg       *config.Config
	messenger Messenger
	hub       *ws.Hub
	presence  Presence
	auth      *auth.Middleware
	store     Pinger
	logger    zerolog.Logger

	upgrader websocket.Upgrader
	validate *validator.Validate
	apiLimit *middleware.IPRateLimiter
	wsLimit  *middleware.IPRateLimiter
}

// NewHandler creates a new Handler.
func NewHandler(cfg *config.Config, messenger Messenger, hub *ws.Hub, presence Presence, authMW *auth.Middleware, store Pinger, logger zerolog.Logger) *Handler {
	h := &Handler{
		cfg:       cfg,
		messenger: messenger,
		hub:       hub,
		presence:  presence,
		auth:      authMW,
		store:     store,
		logger:    logger,
		validate:  validator.New(),
		apiLimit:  middleware.NewIPRateLimiter("api", cfg.APILimit(), int(cfg.APILimit())*2),
		wsLimit:   middleware.NewIPRateLimiter("ws", cfg.WSLimit(), int(cfg.WSLimit())*2),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.isOriginAllowed(r.Header.Get("Origin"))
		},
	}
	return h
}

// Close releases the rate limiters.
func (h *Handler) Close() {
	h.apiLimit.Stop()
	h.wsLimit.Stop()
}

// isOriginAllowed checks if the origin is in the allowed list
func (h *Handler) isOriginAllowed(origin string) bool {
	// Empty origin is allowed (same-origin and non-browser clients)
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// fail maps a use case error to its HTTP status.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyText),
		errors.Is(err, domain.ErrMissingSender),
		errors.Is(err, domain.ErrMissingRecipient):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTextTooLong):
		h.Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		h.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrPersistence):
		h.Error(w, http.StatusInternalServerError, domain.ErrPersistence.Error())
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.Error(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.fail(w, r, domain.ErrUnauthorized)
	}
	return user, ok
}

// GetUsers lists conversation partners for the caller.
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := h.identity(w, r)
	if !ok {
		return
	}
	users, err := h.messenger.Partners(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, users)
}

// GetHistory returns the conversation between the caller and {id}.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := h.identity(w, r)
	if !ok {
		return
	}
	msgs, err := h.messenger.History(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, msgs)
}

type sendRequest struct {
	Text string `json:"text" validate:"required"`
}

// SendMessage persists a message to {id} and relays it live.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, domain.ErrEmptyText)
		return
	}

	ctx := usecase.WithPath(r.Context(), usecase.PathHTTP)
	msg, err := h.messenger.Relay(ctx, user.ID, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.JSON(w, http.StatusCreated, msg)
}

// HandleWebSocket authenticates the caller and upgrades to a live connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, status, msg := h.socketIdentity(r)
	if status != http.StatusOK {
		h.Error(w, status, msg)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	if !h.hub.Register(client) || !client.Start() {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}
}

// socketIdentity resolves who is connecting. A token always wins; a bare
// userId parameter is only trusted when configured for development.
func (h *Handler) socketIdentity(r *http.Request) (string, int, string) {
	claimed := r.URL.Query().Get("userId")

	if token := auth.TokenFromRequest(r); token != "" {
		user, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			return "", http.StatusUnauthorized, domain.ErrUnauthorized.Error()
		}
		if claimed != "" && claimed != user.ID {
			return "", http.StatusForbidden, "userId does not match token"
		}
		return user.ID, http.StatusOK, ""
	}

	if h.cfg.TrustUserIDParam && claimed != "" {
		return claimed, http.StatusOK, ""
	}
	return "", http.StatusUnauthorized, domain.ErrUnauthorized.Error()
}

// Health reports store connectivity and the online count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := map[string]any{
		"status": "healthy",
		"online": h.presence.Count(),
	}
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("store ping failed")
		resp["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	h.JSON(w, status, resp)
}

// HandleStatus serves the HTML status page.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	component := StatusPage(h.presence.Count(), h.cfg.Env)
	component.Render(r.Context(), w)
}
