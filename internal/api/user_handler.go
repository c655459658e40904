package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"paylane-backend-go/internal/core"
	"paylane-backend-go/internal/middleware"
	"paylane-backend-go/internal/models"
)

// UserHandler handles user and profile API endpoints.
type UserHandler struct {
	identityService core.IdentityService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(is core.IdentityService) *UserHandler {
	return &UserHandler{identityService: is}
}

// actorFromContext returns the authenticated user placed in the context by
// the auth middleware.
func actorFromContext(c *gin.Context) (*models.User, bool) {
	raw, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: user not found in context"})
		return nil, false
	}
	user, ok := raw.(*models.User)
	if !ok || user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: user not found in context"})
		return nil, false
	}
	return user, true
}

// GetCurrentUser handles GET /users/me. The profile is joined onto the
// returned user.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	user, err := h.identityService.GetUser(c.Request.Context(), actor.ID)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser handles GET /users/:userId.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.identityService.GetUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetAllUsers handles GET /users. The caller is always excluded from the
// listing; q searches name, email, and phone.
func (h *UserHandler) GetAllUsers(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	req := models.ListUsersRequest{
		ActorID: actor.ID,
		Q:       c.Query("q"),
		Status:  c.Query("status"),
		Type:    c.Query("type"),
	}
	req.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	req.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	page, err := h.identityService.GetAllUsers(c.Request.Context(), &req)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// EditUserProfile handles PATCH /users. Editing another user's record
// requires the admin type; the two halves of the patch are applied
// independently and Success reflects both.
func (h *UserHandler) EditUserProfile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.EditUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	result, err := h.identityService.EditUserProfile(c.Request.Context(), actor, &req)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetStateRequest flips the caller's presence state.
type SetStateRequest struct {
	State string `json:"state" binding:"required"`
}

// SetState handles PATCH /users/state. Success=false means nothing was
// written: either the state already matched or the user vanished.
func (h *UserHandler) SetState(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req SetStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	modified, err := h.identityService.SetState(c.Request.Context(), actor.ID, req.State)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, SetStateResponse{Success: modified})
}

// PresignPictureUpload handles POST /users/picture/presign.
func (h *UserHandler) PresignPictureUpload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	key, url, err := h.identityService.PresignPictureUpload(c.Request.Context(), actor.ID)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, PresignUploadResponse{Key: key, UploadURL: url})
}
