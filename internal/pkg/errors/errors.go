package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with additional context
type AppError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	StatusCode int         `json:"-"`
	Internal   error       `json:"-"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Common error codes
const (
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDatabase           = "DATABASE_ERROR"
	ErrCodeProviderAuth       = "PROVIDER_AUTH_ERROR"
	ErrCodeProviderAPI        = "PROVIDER_API_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Harvest error codes
const (
	ErrCodeUnknownResourceType = "UNKNOWN_RESOURCE_TYPE"
	ErrCodeFieldCoercion       = "FIELD_COERCION"
	ErrCodeFetchFailed         = "FETCH_FAILED"
	ErrCodeRefreshTransaction  = "REFRESH_TRANSACTION"
	ErrCodeJoinCompute         = "JOIN_COMPUTE"
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// Code returns the code of the first AppError in err's chain, or "" if none
func Code(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an AppError with the given code
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Internal
	}
	return false
}

// StatusCode returns the HTTP status carried by err, defaulting to 500
func StatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// Common error constructors

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

// ValidationError creates a validation error
func ValidationError(message string, details interface{}) *AppError {
	return New(ErrCodeValidation, message, http.StatusBadRequest).WithDetails(details)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, message, http.StatusInternalServerError)
}

// ProviderAuthError creates a provider authentication error
func ProviderAuthError(provider string, err error) *AppError {
	return Wrap(err, ErrCodeProviderAuth,
		fmt.Sprintf("Failed to authenticate with %s", provider),
		http.StatusUnauthorized)
}

// ProviderAPIError creates a provider API error
func ProviderAPIError(provider string, err error) *AppError {
	return Wrap(err, ErrCodeProviderAPI,
		fmt.Sprintf("Failed to communicate with %s API", provider),
		http.StatusBadGateway)
}

// ServiceUnavailable creates a service unavailable error
func ServiceUnavailable(message string) *AppError {
	return New(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

// UnknownResourceType is returned when no schema is registered for a type
func UnknownResourceType(resourceType string) *AppError {
	return New(ErrCodeUnknownResourceType,
		fmt.Sprintf("no schema registered for resource type %q", resourceType),
		http.StatusNotFound).WithDetails(map[string]string{"resource_type": resourceType})
}

// FieldCoercion describes a capability value that did not fit its declared type
func FieldCoercion(field, fieldType, value string, err error) *AppError {
	return Wrap(err, ErrCodeFieldCoercion,
		fmt.Sprintf("cannot coerce %s value %q to %s", field, value, fieldType),
		http.StatusUnprocessableEntity).WithDetails(map[string]string{
		"field": field,
		"type":  fieldType,
		"value": value,
	})
}

// FetchFailed is returned when a page could not be retrieved after its retry
func FetchFailed(url string, err error) *AppError {
	return Wrap(err, ErrCodeFetchFailed,
		fmt.Sprintf("failed to fetch %s", url),
		http.StatusBadGateway).WithDetails(map[string]string{"url": url})
}

// RefreshTransaction is returned when a table reload was rolled back
func RefreshTransaction(table string, err error) *AppError {
	return Wrap(err, ErrCodeRefreshTransaction,
		fmt.Sprintf("refresh of %s rolled back", table),
		http.StatusInternalServerError).WithDetails(map[string]string{"table": table})
}

// JoinCompute is returned when the pricing join could not be computed or stored
func JoinCompute(message string, err error) *AppError {
	return Wrap(err, ErrCodeJoinCompute, message, http.StatusInternalServerError)
}
