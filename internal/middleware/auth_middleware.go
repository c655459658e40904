package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"paylane-backend-go/internal/core"
	"paylane-backend-go/internal/db"
)

// ErrorResponse is a local definition for sending standardized error messages.
// It mirrors the one in internal/api/dto_models.go to avoid import cycles.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Context keys set by VerifyToken for downstream handlers.
const (
	ContextUserIDKey = "userID"
	ContextUserKey   = "authUser"
)

// AuthMiddleware provides Gin middleware for bearer token authentication.
type AuthMiddleware struct {
	issuer   core.TokenIssuer
	userRepo db.UserRepository
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
// It panics if a dependency is nil, as authenticated routes cannot function
// without them.
func NewAuthMiddleware(issuer core.TokenIssuer, userRepo db.UserRepository) *AuthMiddleware {
	if issuer == nil || userRepo == nil {
		panic("AuthMiddleware requires a token issuer and a user repository")
	}
	return &AuthMiddleware{issuer: issuer, userRepo: userRepo}
}

// VerifyToken verifies the bearer token from the Authorization header, loads
// the authenticated user, and rejects soft-deleted accounts. On success the
// user id and the loaded user are set in the Gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		userID, err := m.issuer.Verify(parts[1])
		if err != nil {
			// Specific verification errors stay server-side.
			log.Printf("AuthMiddleware: token verification failed: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		user, err := m.userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to resolve authenticated user"})
			return
		}
		if !user.IsActive() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "User deleted!"})
			return
		}

		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserKey, user)

		c.Next()
	}
}
