package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
)

type contextKey string

const identityContextKey contextKey = "identity"

// CookieName is the session cookie checked when no bearer header is sent.
const CookieName = "jwt"

// Middleware resolves the caller's identity from a session token.
type Middleware struct {
	verifier *Verifier
	users    store.UserDirectory
	logger   zerolog.Logger
}

// NewMiddleware creates the auth middleware. users may be nil; when set,
// every authenticated caller is recorded in the directory.
func NewMiddleware(verifier *Verifier, users store.UserDirectory, logger zerolog.Logger) *Middleware {
	return &Middleware{verifier: verifier, users: users, logger: logger}
}

// RequireAuth rejects requests without a valid token with 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.verifier.Verify(TokenFromRequest(r))
		if err != nil {
			m.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected unauthenticated request")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": domain.ErrUnauthorized.Error()})
			return
		}

		user := claims.User()
		m.remember(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user)))
	})
}

// Authenticate verifies a raw token and records the user, for callers that
// cannot use RequireAuth such as the websocket upgrade.
func (m *Middleware) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := m.verifier.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	user := claims.User()
	m.remember(ctx, user)
	return user, nil
}

func (m *Middleware) remember(ctx context.Context, user domain.User) {
	if m.users == nil {
		return
	}
	if err := m.users.UpsertUser(ctx, user); err != nil {
		m.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record user")
	}
}

// User converts the claims to a directory entry.
func (c *Claims) User() domain.User {
	return domain.User{ID: c.UserID, Name: c.Name, Avatar: c.Avatar}
}

// TokenFromRequest extracts a token from the Authorization header, the session
// cookie or the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// WithIdentity stores user in ctx.
func WithIdentity(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, identityContextKey, user)
}

// IdentityFromContext returns the user set by RequireAuth.
func IdentityFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(identityContextKey).(domain.User)
	return user, ok && user.ID != ""
}
