package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
// Details carries optional, non-authoritative debug payload (for example the
// offending query depth, or internal error text when development mode is on).
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Internal   error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a more specific message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// WithDetail returns a copy of the AppError with one detail entry added.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cpy.Details[k] = v
	}
	cpy.Details[key] = value
	return &cpy
}

// Extensions exposes the machine-readable error payload. The GraphQL executor
// picks this up for the errors[].extensions envelope field.
func (e *AppError) Extensions() map[string]interface{} {
	if e == nil {
		return nil
	}

	ext := map[string]interface{}{"code": e.Code}
	if len(e.Details) > 0 {
		ext["details"] = e.Details
	}
	return ext
}

// Engine error taxonomy. The request pipeline and the inferred operations
// never surface anything outside this set to API consumers.
var (
	ErrValidation = &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    "Malformed request",
		StatusCode: http.StatusBadRequest,
	}

	ErrSyntax = &AppError{
		Code:       "SYNTAX_ERROR",
		Message:    "Malformed query",
		StatusCode: http.StatusBadRequest,
	}

	ErrQueryTooComplex = &AppError{
		Code:       "QUERY_TOO_COMPLEX",
		Message:    "Query exceeds the configured depth limit",
		StatusCode: http.StatusBadRequest,
	}

	ErrIntrospectionDisabled = &AppError{
		Code:       "INTROSPECTION_DISABLED",
		Message:    "Schema introspection is disabled",
		StatusCode: http.StatusForbidden,
	}

	ErrTypeNotFound = &AppError{
		Code:       "TYPE_NOT_FOUND",
		Message:    "Entity type is not registered",
		StatusCode: http.StatusBadRequest,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "Storage service is unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrGet = &AppError{
		Code:       "GET_ERROR",
		Message:    "Failed to fetch document",
		StatusCode: http.StatusInternalServerError,
	}

	ErrCreate = &AppError{
		Code:       "CREATE_ERROR",
		Message:    "Failed to create document",
		StatusCode: http.StatusInternalServerError,
	}

	ErrUpdate = &AppError{
		Code:       "UPDATE_ERROR",
		Message:    "Failed to update document",
		StatusCode: http.StatusInternalServerError,
	}

	ErrDelete = &AppError{
		Code:       "DELETE_ERROR",
		Message:    "Failed to delete document",
		StatusCode: http.StatusInternalServerError,
	}

	ErrList = &AppError{
		Code:       "LIST_ERROR",
		Message:    "Failed to list documents",
		StatusCode: http.StatusInternalServerError,
	}

	ErrCount = &AppError{
		Code:       "COUNT_ERROR",
		Message:    "Failed to count documents",
		StatusCode: http.StatusInternalServerError,
	}

	ErrExists = &AppError{
		Code:       "EXISTS_ERROR",
		Message:    "Failed to check document existence",
		StatusCode: http.StatusInternalServerError,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       ErrInternal.Code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError normalises an arbitrary error into an AppError. Unknown errors
// collapse to INTERNAL_ERROR so raw infrastructure failures never cross the
// API boundary.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternal.WithInternal(err)
}
