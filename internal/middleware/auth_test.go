package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	users "github.com/AdamBeresnev/op-arena/internal/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTIdentityProviderRoundTrip(t *testing.T) {
	provider := NewJWTIdentityProvider("test-secret")
	identity := users.Identity{ID: uuid.New(), Role: users.RoleOrganizer}

	token, err := provider.IssueToken(identity, time.Hour)
	require.NoError(t, err)

	got, err := provider.Identify(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestJWTIdentityProviderRejects(t *testing.T) {
	provider := NewJWTIdentityProvider("test-secret")
	identity := users.Identity{ID: uuid.New(), Role: users.RoleStudent}

	expired, err := provider.IssueToken(identity, -time.Minute)
	require.NoError(t, err)
	_, err = provider.Identify(t.Context(), expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	foreign, err := NewJWTIdentityProvider("other-secret").IssueToken(identity, time.Hour)
	require.NoError(t, err)
	_, err = provider.Identify(t.Context(), foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	badRole, err := provider.IssueToken(users.Identity{ID: identity.ID, Role: "OVERLORD"}, time.Hour)
	require.NoError(t, err)
	_, err = provider.Identify(t.Context(), badRole)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = provider.Identify(t.Context(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	provider := NewJWTIdentityProvider("test-secret")
	identity := users.Identity{ID: uuid.New(), Role: users.RoleAdmin}
	token, err := provider.IssueToken(identity, time.Hour)
	require.NoError(t, err)

	var seen users.Identity
	handler := RequireAuth(provider)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetIdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	testCases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	assert.Equal(t, identity, seen)
}
