package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"paylane-backend-go/internal/core"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`             // A high-level error message or code
	Details string `json:"details,omitempty"` // More specific details about the error, if available
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PresignUploadResponse returns the storage key and the URL the client PUTs
// the picture bytes to.
type PresignUploadResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

// SetStateResponse reports whether the presence write modified anything.
type SetStateResponse struct {
	Success bool `json:"success"`
}

// mapServiceErrorToStatus maps errors from the core services to HTTP status
// codes and an ErrorResponse body. Internal and upstream failures keep their
// details server-side.
func mapServiceErrorToStatus(c *gin.Context, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidLink),
		errors.Is(err, core.ErrInvalidOrExpiredLink),
		errors.Is(err, core.ErrSecurity):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: errorDetail(err)}
	case errors.Is(err, core.ErrUnauthorized):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: errorDetail(err)}
	case errors.Is(err, core.ErrNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: errorDetail(err)}
	case errors.Is(err, core.ErrConflict):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: errorDetail(err)}
	case errors.Is(err, core.ErrExternalService):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: "Upstream service error", Details: "Could not complete the operation with an upstream provider."}
		log.Printf("Upstream service error: %v", err)
	default:
		log.Printf("Internal server error: %v", err)
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// errorDetail strips the sentinel prefix produced by fmt.Errorf("%w: ...") so
// clients see the human-readable part only.
func errorDetail(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		core.ErrValidation, core.ErrNotFound, core.ErrConflict, core.ErrUnauthorized,
		core.ErrInvalidLink, core.ErrInvalidOrExpiredLink, core.ErrSecurity,
	} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
