package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paylane-backend-go/internal/core"
)

// RecoveryHandler handles the password reset endpoints. Both are public: the
// caller proves ownership through the mailed link, not through a session.
type RecoveryHandler struct {
	recoveryService core.RecoveryService
}

// NewRecoveryHandler creates a new RecoveryHandler.
func NewRecoveryHandler(rs core.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recoveryService: rs}
}

// EmailResetRequest carries the address a reset link should be mailed to.
type EmailResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest exchanges a mailed token for a new password.
type ResetPasswordRequest struct {
	User     string `json:"user" binding:"required"`
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// EmailResetPassword handles POST /auth/forgot-password.
func (h *RecoveryHandler) EmailResetPassword(c *gin.Context) {
	var req EmailResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	if err := h.recoveryService.RequestReset(c.Request.Context(), req.Email); err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Password reset link sent to your email account"})
}

// ResetPassword handles POST /auth/forgot-password/reset.
func (h *RecoveryHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	if err := h.recoveryService.ResetPassword(c.Request.Context(), req.User, req.Token, req.Password); err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Password reset successfully."})
}
