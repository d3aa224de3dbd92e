package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/httputil"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IdentityProvider maps a bearer token to the acting user.
type IdentityProvider interface {
	Identify(ctx context.Context, token string) (users.Identity, error)
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// RequireAuth resolves the bearer token into a users.Identity on the request
// context, or answers 401.
func RequireAuth(provider IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				httputil.WriteError(r.Context(), w, fmt.Errorf("%w: missing Authorization header", httputil.ErrUnauthorized))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				httputil.WriteError(r.Context(), w, fmt.Errorf("%w: invalid Authorization header format", httputil.ErrUnauthorized))
				return
			}

			identity, err := provider.Identify(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				httputil.WriteError(r.Context(), w, fmt.Errorf("%w: %v", httputil.ErrUnauthorized, err))
				return
			}

			next.ServeHTTP(w, r.WithContext(users.WithIdentity(r.Context(), identity)))
		})
	}
}

func GetIdentityFromContext(ctx context.Context) (users.Identity, bool) {
	return users.IdentityFromContext(ctx)
}

type identityClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTIdentityProvider verifies HS256 tokens whose subject is the user id and
// whose role claim is one of the known roles.
type JWTIdentityProvider struct {
	secret []byte
}

func NewJWTIdentityProvider(secret string) *JWTIdentityProvider {
	return &JWTIdentityProvider{secret: []byte(secret)}
}

func (p *JWTIdentityProvider) Identify(_ context.Context, tokenString string) (users.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return users.Identity{}, ErrExpiredToken
		}
		return users.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid {
		return users.Identity{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return users.Identity{}, ErrInvalidToken
	}
	role, err := users.ParseRole(claims.Role)
	if err != nil {
		return users.Identity{}, ErrInvalidToken
	}

	return users.Identity{ID: id, Role: role}, nil
}

// IssueToken signs a token for identity, valid for ttl.
func (p *JWTIdentityProvider) IssueToken(identity users.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   identity.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: string(identity.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
