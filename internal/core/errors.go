package core

import "errors"

// Sentinel errors returned by the services in this package. Callers
// classify failures with errors.Is and map them to transport codes at
// the API layer.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("already exists")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidLink          = errors.New("invalid link")
	ErrInvalidOrExpiredLink = errors.New("invalid or expired link")
	ErrSecurity             = errors.New("signature verification failed")
	ErrExternalService      = errors.New("external service failure")
	ErrInternal             = errors.New("internal failure")
)
