package authz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/directory"
	"github.com/sells-group/phonelink/internal/model"
)

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager("test-secret", time.Hour, "phonelink")
	require.NoError(t, err)
	return m
}

func TestTokenManager_MintParse(t *testing.T) {
	m := newManager(t)
	tok, exp, err := m.Mint("admin1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin1", claims.UserID)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := newManager(t)
	other, err := NewTokenManager("other-secret", time.Hour, "phonelink")
	require.NoError(t, err)
	foreign, _, err := other.Mint("admin1")
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "admin1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "phonelink",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Parse(tok)
			assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
		})
	}

	_, err = NewTokenManager("", time.Hour, "")
	assert.Error(t, err)
}

func TestDirectoryRoles(t *testing.T) {
	r := NewDirectoryRoles(directory.NewMemory(
		model.User{ID: "admin1", Role: model.RoleAdmin},
		model.User{ID: "u1"},
	))
	ctx := context.Background()

	role, err := r.ResolveCallerRole(ctx, "admin1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, role)

	role, err = r.ResolveCallerRole(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestMiddleware(t *testing.T) {
	m := newManager(t)
	roles := NewDirectoryRoles(directory.NewMemory(
		model.User{ID: "admin1", Role: model.RoleAdmin},
		model.User{ID: "u1"},
	))
	var seen string
	h := Authenticate(m)(RequireRole(roles, model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	adminTok, _, err := m.Mint("admin1")
	require.NoError(t, err)
	userTok, _, err := m.Mint("u1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"non admin", "Bearer " + userTok, http.StatusForbidden},
		{"admin", "Bearer " + adminTok, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
	assert.Equal(t, "admin1", seen)
}

type failingRoles struct{}

func (failingRoles) ResolveCallerRole(context.Context, string) (string, error) {
	return "", apperr.New(apperr.Internal, "directory offline")
}

func TestRequireRole_LookupFailureIsForbidden(t *testing.T) {
	called := false
	h := RequireRole(failingRoles{}, model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "admin1"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, called)
	assert.Contains(t, rr.Body.String(), "admin only")
	assert.NotContains(t, rr.Body.String(), "directory offline")
}
