package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Webhook verification (401/400)
	ErrCodeSignatureMismatch        ErrorCode = "verify_signature_mismatch"
	ErrCodeOriginNotTrusted         ErrorCode = "verify_origin_not_trusted"
	ErrCodeServerConfirmationFailed ErrorCode = "verify_server_confirmation_failed"
	ErrCodeMissingCorrelationID     ErrorCode = "verify_missing_correlation_id"
	ErrCodeMalformedPayload         ErrorCode = "verify_malformed_payload"
	ErrCodeSignatureHeaderMissing   ErrorCode = "verify_signature_header_missing"

	// Validation (400)
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail    ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidAmount   ErrorCode = "validation_invalid_amount"
	ErrCodeValidationInvalidCurrency ErrorCode = "validation_invalid_currency"
	ErrCodeValidationInvalidProvider ErrorCode = "validation_invalid_provider"

	// Not Found (404)
	ErrCodeNotFoundCustomer ErrorCode = "not_found_customer"
	ErrCodeNotFoundIntent   ErrorCode = "not_found_intent"

	// Conflict (409)
	ErrCodeConflictIntentExists ErrorCode = "conflict_intent_exists"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamPayfast    ErrorCode = "upstream_payfast_unavailable"
	ErrCodeUpstreamStripe     ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamQueue      ErrorCode = "upstream_queue_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
//
// Verification failures map to 401: a non-2xx response is what makes the
// provider re-deliver the payload, and the failure is an authentication
// failure of the delivery, not a malformed request. The two payload-shape
// codes map to 400 instead.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case c == ErrCodeMalformedPayload, c == ErrCodeMissingCorrelationID:
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "verify_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// IsVerificationFailure reports whether the code belongs to the webhook
// verification taxonomy. The facade layer must never catch and downgrade
// these: a forged or malformed webhook must never silently produce a
// canonical PaymentEvent.
func (c ErrorCode) IsVerificationFailure() bool {
	return strings.HasPrefix(string(c), "verify_")
}

// AppError is the standard application error type used throughout the
// platform. All domain and handler errors should be expressed as AppError to
// enable consistent error formatting, HTTP status mapping, and error chain
// support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged
// in. This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
