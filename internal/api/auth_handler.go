package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paylane-backend-go/internal/core"
	"paylane-backend-go/internal/models"
)

// AuthHandler handles signup and login endpoints.
type AuthHandler struct {
	identityService core.IdentityService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(is core.IdentityService) *AuthHandler {
	return &AuthHandler{identityService: is}
}

// Signup handles POST /auth/signup. On success the user, its freshly created
// profile, and a bearer token are returned together.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	result, err := h.identityService.Signup(c.Request.Context(), &req)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	result, err := h.identityService.Login(c.Request.Context(), &req)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
