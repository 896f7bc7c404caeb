package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeValidation = "validation_error"
	ErrCodeNotFound   = "not_found"
	ErrCodeConflict   = "conflict"
	ErrCodeForbidden  = "forbidden"
	ErrCodeServer     = "server_error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func validationError(msg string) *CoreError {
	return &CoreError{Code: ErrCodeValidation, Message: msg}
}

func notFoundError(msg string) *CoreError {
	return &CoreError{Code: ErrCodeNotFound, Message: msg}
}

func conflictError(msg string) *CoreError {
	return &CoreError{Code: ErrCodeConflict, Message: msg}
}

func forbiddenError(msg string) *CoreError {
	return &CoreError{Code: ErrCodeForbidden, Message: msg}
}

// serverError hides the underlying store or transport failure from the
// caller; the wrapped detail is logged at the failure site instead.
func serverError(msg string) *CoreError {
	return &CoreError{Code: ErrCodeServer, Message: msg}
}

// CodeOf extracts the error code, defaulting to server_error for
// unclassified failures.
func CodeOf(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeServer
}
