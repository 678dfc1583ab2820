package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smartpay/smartpay-api/internal/pkg/jwt"
	"github.com/smartpay/smartpay-api/internal/pkg/logger"
	"github.com/smartpay/smartpay-api/internal/pkg/response"
	"github.com/smartpay/smartpay-api/internal/pkg/revocation"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	ClaimsKey contextKey = "claims"
)

// Auth returns middleware that validates JWT and rejects revoked tokens
func Auth(jwtService *jwt.Service, revoked revocation.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateAccessToken(parts[1])
			if err != nil {
				if errors.Is(err, jwt.ErrExpiredToken) {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					// fail closed: a logged-out token must not slip through
					log.Error().Err(err).Msg("Token revocation check failed")
					response.Unauthorized(w, "Unable to verify token")
					return
				}
				if isRevoked {
					logger.LogInfo(r.Context(), "Revoked token presented", "user_id", claims.UserID.String())
					response.Unauthorized(w, "Token has been revoked")
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromQuery copies ?token= into the Authorization header when none was sent.
func TokenFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetClaims returns the validated token claims, or nil outside Auth
func GetClaims(ctx context.Context) *jwt.Claims {
	if c, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return c
	}
	return nil
}
