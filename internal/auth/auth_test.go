package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
)

func TestIssueAndVerify(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("secret")

	token, err := v.Issue(domain.User{ID: "u1", Name: "Alice", Avatar: "a.png"}, time.Hour)
	req.NoError(err)

	claims, err := v.Verify(token)
	req.NoError(err)
	req.Equal(domain.User{ID: "u1", Name: "Alice", Avatar: "a.png"}, claims.User())
	req.Equal("u1", claims.Subject)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("secret")
	good, err := v.Issue(domain.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	expired := NewVerifier("secret")
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, err := expired.Issue(domain.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		v     *Verifier
	}{
		{"empty", "", v},
		{"garbage", "not-a-token", v},
		{"wrong secret", good, NewVerifier("other")},
		{"expired", old, v},
		{"alg none", unsigned, v},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Verify(tt.token)
			require.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestIssueRequiresUserID(t *testing.T) {
	_, err := NewVerifier("secret").Issue(domain.User{}, time.Hour)
	require.Error(t, err)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	require.Equal(t, "q", TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "c"})
	require.Equal(t, "c", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer h")
	require.Equal(t, "h", TokenFromRequest(r))
}

func TestRequireAuth(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("secret")
	users := store.NewMemoryStore()
	mw := NewMiddleware(v, users, zerolog.Nop())

	var seen domain.User
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/users", nil))
	req.Equal(http.StatusUnauthorized, rec.Code)
	req.JSONEq(`{"error":"authentication required"}`, rec.Body.String())

	token, err := v.Issue(domain.User{ID: "u1", Name: "Alice"}, time.Hour)
	req.NoError(err)
	r := httptest.NewRequest(http.MethodGet, "/messages/users", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	req.Equal(http.StatusNoContent, rec.Code)
	req.Equal("u1", seen.ID)

	listed, err := users.ListUsers(context.Background(), "")
	req.NoError(err)
	req.Equal([]domain.User{{ID: "u1", Name: "Alice"}}, listed)
}

func TestIdentityFromContextEmpty(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	require.False(t, ok)
}

func TestUnverifiedUserID(t *testing.T) {
	token, err := NewVerifier("server-secret").Issue(domain.User{ID: "u9"}, time.Hour)
	require.NoError(t, err)

	id, err := UnverifiedUserID(token)
	require.NoError(t, err)
	require.Equal(t, "u9", id)

	_, err = UnverifiedUserID("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)
}
