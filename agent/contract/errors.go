package contract

import "errors"

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrSchemaViolation   = errors.New("model response violates schema")
	ErrValidation        = errors.New("validation failed")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionTerminated = errors.New("session is terminated")
)
