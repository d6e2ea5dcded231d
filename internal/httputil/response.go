package httputil

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
)

// DeniedMessage is the only thing an outside caller learns about a rejected
// token or document reference.
const DeniedMessage = "Access denied"

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Code    apperrors.ErrorCode `json:"code,omitempty"`
	Details any                 `json:"details,omitempty"`
	Debug   string              `json:"debug,omitempty"`
}

// WriteError writes an AppError as an HTTP response with appropriate status code
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorWithDebug(w, err, false)
}

// WriteErrorWithDebug is WriteError plus, when debug is set, the full error
// chain in a "debug" field. Only for staff-facing endpoints in development.
func WriteErrorWithDebug(w http.ResponseWriter, err error, debug bool) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		// Wrap unknown errors as internal errors
		appErr = apperrors.Internal("An unexpected error occurred")
	}

	response := ErrorResponse{
		Message: appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	}
	if debug && err != nil {
		response.Debug = err.Error()
	}

	WriteJSON(w, statusFromCode(appErr.Code), response)
}

// WriteDenied renders every access rejection the same way.
func WriteDenied(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusForbidden, ErrorResponse{Message: DeniedMessage})
}

// statusFromCode maps ErrorCode to HTTP status code
func statusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case apperrors.ErrCodeValidation,
		apperrors.ErrCodeMissingRequired:
		return http.StatusBadRequest

	// 401 Unauthorized
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized

	// 403 Forbidden
	case apperrors.ErrCodeForbidden,
		apperrors.ErrCodeTokenExpired,
		apperrors.ErrCodeMalformedReference,
		apperrors.ErrCodePatientMismatch,
		apperrors.ErrCodeMissingCredential,
		apperrors.ErrCodeDocumentNotFound:
		return http.StatusForbidden

	// 404 Not Found
	case apperrors.ErrCodeNotFound,
		apperrors.ErrCodeTokenNotFound,
		apperrors.ErrCodeUnknownPatient:
		return http.StatusNotFound

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests

	// 503 Service Unavailable
	case apperrors.ErrCodePersistence:
		return http.StatusServiceUnavailable

	// 500 Internal Server Error
	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeGenerationFailure:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
