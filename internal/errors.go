package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation      ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeUnauthenticated ErrorType = "UNAUTHENTICATED"
	ErrorTypeForbidden       ErrorType = "FORBIDDEN"
	ErrorTypeConflict        ErrorType = "CONFLICT"
	ErrorTypeUnavailable     ErrorType = "UNAVAILABLE"
	ErrorTypeInternal        ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeUnauthenticated    ErrorCode = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeTooManyAttempts    ErrorCode = "TOO_MANY_ATTEMPTS"

	ErrCodeOtpExpired     ErrorCode = "OTP_EXPIRED"
	ErrCodeOtpAlreadyUsed ErrorCode = "OTP_ALREADY_USED"
	ErrCodeOtpMismatch    ErrorCode = "OTP_MISMATCH"
	ErrCodeOtpNotFound    ErrorCode = "OTP_NOT_FOUND"

	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	ErrCodeSessionRevoked ErrorCode = "SESSION_REVOKED"

	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeModuleNotLicensed ErrorCode = "MODULE_NOT_LICENSED"

	// Cross-tenant access is reported to the client exactly like a plain
	// permission denial so the existence of the resource never leaks.
	ErrCodeCrossTenantAccessDenied ErrorCode = "FORBIDDEN"

	ErrCodeDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"

	ErrCodeMemberNotFound ErrorCode = "MEMBER_NOT_FOUND"
	ErrCodeUserNotFound   ErrorCode = "USER_NOT_FOUND"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			if len(messages) > 0 {
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthenticatedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthenticated,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewUnavailableError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       ErrCodeDependencyUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// Sentinel errors for the authorization core. Handlers compare with
// errors.Is; WithDetails/WithCause return copies so the sentinels stay
// immutable.
var (
	ErrUnauthenticated    = NewUnauthenticatedError("Authentication required", ErrCodeUnauthenticated)
	ErrInvalidCredentials = NewUnauthenticatedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrTooManyAttempts    = NewForbiddenError("Too many attempts, try again later", ErrCodeTooManyAttempts)

	ErrOtpExpired     = NewUnauthenticatedError("Verification code expired", ErrCodeOtpExpired)
	ErrOtpAlreadyUsed = NewUnauthenticatedError("Verification code already used", ErrCodeOtpAlreadyUsed)
	ErrOtpMismatch    = NewUnauthenticatedError("Verification code is incorrect", ErrCodeOtpMismatch)
	ErrOtpNotFound    = NewUnauthenticatedError("Verification challenge not found", ErrCodeOtpNotFound)

	ErrSessionExpired = NewUnauthenticatedError("Session expired, please log in again", ErrCodeSessionExpired)
	ErrSessionRevoked = NewUnauthenticatedError("Session revoked, please log in again", ErrCodeSessionRevoked)

	ErrForbidden         = NewForbiddenError("Insufficient permissions", ErrCodeForbidden)
	ErrModuleNotLicensed = NewForbiddenError("Subscription does not include this module", ErrCodeModuleNotLicensed)

	ErrCrossTenantAccessDenied = NewForbiddenError("Insufficient permissions", ErrCodeCrossTenantAccessDenied)

	ErrDependencyUnavailable = NewUnavailableError("Service temporarily unavailable", nil)
)

// Is lets the sentinel errors match their WithDetails/WithCause copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code && e.Message == t.Message
}

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
