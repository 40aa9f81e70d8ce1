package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"venuely/internal/shared/config"
	"venuely/internal/shared/utils/response"
	"venuely/internal/users"
	"venuely/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Context keys set by JWTAuthWithConfig
const (
	ContextUserID         = "user_id"
	ContextUserEmail      = "user_email"
	ContextUserRole       = "user_role"
	ContextTokenID        = "token_id"
	ContextTokenExpiresAt = "token_expires_at"
)

var ErrUnauthenticated = errors.New("user not authenticated")

// RevocationChecker is satisfied by the auth revocation store.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTAuthWithConfig creates a JWT authentication middleware with config
func JWTAuthWithConfig(cfg *config.Config, revocations RevocationChecker, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, nil)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			log.LogAuthFailure(c.Request.Context(), "invalid token", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		if tokenType, _ := claims["type"].(string); tokenType != "access" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token type", nil, nil)
			c.Abort()
			return
		}

		tokenID, _ := claims["jti"].(string)
		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), tokenID)
			if err != nil {
				log.ErrorWithContext(c.Request.Context(), "revocation lookup failed", err, nil)
				response.RespondJSON(c, "error", http.StatusServiceUnavailable, "unable to verify token", nil, nil)
				c.Abort()
				return
			}
			if revoked {
				log.LogAuthFailure(c.Request.Context(), "revoked token", c.ClientIP())
				response.RespondJSON(c, "error", http.StatusUnauthorized, "token has been revoked", nil, nil)
				c.Abort()
				return
			}
		}

		c.Set(ContextUserID, claims["user_id"])
		c.Set(ContextUserEmail, claims["email"])
		c.Set(ContextUserRole, claims["role"])
		c.Set(ContextTokenID, tokenID)
		if exp, ok := claims["exp"].(float64); ok {
			c.Set(ContextTokenExpiresAt, time.Unix(int64(exp), 0))
		}

		c.Next()
	}
}

// RequireRoles middleware checks if user has any of the required roles
func RequireRoles(requiredRoles ...users.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		if role == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}

		for _, r := range requiredRoles {
			if role == r {
				c.Next()
				return
			}
		}

		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		c.Abort()
	}
}

// RequireAdmin middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(users.RoleAdmin)
}

// CurrentUserID returns the authenticated user's id.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(ContextUserID)
	if !exists {
		return uuid.Nil, ErrUnauthenticated
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

func CurrentRole(c *gin.Context) users.Role {
	raw, _ := c.Get(ContextUserRole)
	s, _ := raw.(string)
	return users.Role(s)
}

// CurrentToken returns the jti and expiry of the presented access token.
func CurrentToken(c *gin.Context) (string, time.Time) {
	id := c.GetString(ContextTokenID)
	exp, _ := c.Get(ContextTokenExpiresAt)
	t, _ := exp.(time.Time)
	return id, t
}

// Authenticated resolves the caller or writes a 401 and reports false.
func Authenticated(c *gin.Context) (uuid.UUID, users.Role, bool) {
	id, err := CurrentUserID(c)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return uuid.Nil, "", false
	}
	return id, CurrentRole(c), true
}
