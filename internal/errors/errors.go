package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Secure link access rejections
	ErrCodeTokenNotFound      ErrorCode = "TOKEN_NOT_FOUND"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeMalformedReference ErrorCode = "MALFORMED_REFERENCE"
	ErrCodePatientMismatch    ErrorCode = "PATIENT_MISMATCH"
	ErrCodeMissingCredential  ErrorCode = "MISSING_CREDENTIAL"
	ErrCodeDocumentNotFound   ErrorCode = "DOCUMENT_NOT_FOUND"

	// Issuance
	ErrCodeUnknownPatient    ErrorCode = "UNKNOWN_PATIENT"
	ErrCodeGenerationFailure ErrorCode = "GENERATION_FAILURE"

	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILURE"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Access rejections

func TokenNotFound() *AppError {
	return New(ErrCodeTokenNotFound, "Token not found or revoked")
}

func TokenExpired() *AppError {
	return New(ErrCodeTokenExpired, "Token has expired")
}

func MalformedReference(reason string) *AppError {
	return New(ErrCodeMalformedReference, fmt.Sprintf("Malformed document reference: %s", reason))
}

func PatientMismatch() *AppError {
	return New(ErrCodePatientMismatch, "Document reference does not belong to token patient")
}

func MissingCredential(field string) *AppError {
	return New(ErrCodeMissingCredential, fmt.Sprintf("%s is missing", field))
}

func DocumentNotFound() *AppError {
	return New(ErrCodeDocumentNotFound, "Document not found for patient")
}

// Issuance

func UnknownPatient(patientID int64) *AppError {
	return New(ErrCodeUnknownPatient, fmt.Sprintf("Patient %d does not exist", patientID))
}

func GenerationFailure(attempts int) *AppError {
	return New(ErrCodeGenerationFailure, fmt.Sprintf("Could not generate a unique token after %d attempts", attempts))
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Persistence(cause error) *AppError {
	return Wrap(ErrCodePersistence, "Storage unavailable", cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsAccessRejection reports whether err is one of the outcomes of the
// token + document reference check. Callers must render all of them as the
// same generic denial.
func IsAccessRejection(err error) bool {
	switch GetCode(err) {
	case ErrCodeTokenNotFound,
		ErrCodeTokenExpired,
		ErrCodeMalformedReference,
		ErrCodePatientMismatch,
		ErrCodeMissingCredential,
		ErrCodeDocumentNotFound:
		return true
	}
	return false
}
