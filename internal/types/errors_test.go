package types

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus_VerificationCodes(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeSignatureMismatch, http.StatusUnauthorized},
		{ErrCodeOriginNotTrusted, http.StatusUnauthorized},
		{ErrCodeServerConfirmationFailed, http.StatusUnauthorized},
		{ErrCodeSignatureHeaderMissing, http.StatusUnauthorized},
		{ErrCodeMissingCorrelationID, http.StatusBadRequest},
		{ErrCodeMalformedPayload, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("%s: HTTPStatus() = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestHTTPStatus_PrefixFamilies(t *testing.T) {
	if got := ErrCodeValidationInvalidAmount.HTTPStatus(); got != http.StatusBadRequest {
		t.Errorf("validation code: got %d, want 400", got)
	}
	if got := ErrCodeNotFoundIntent.HTTPStatus(); got != http.StatusNotFound {
		t.Errorf("not_found code: got %d, want 404", got)
	}
	if got := ErrCodeConflictIntentExists.HTTPStatus(); got != http.StatusConflict {
		t.Errorf("conflict code: got %d, want 409", got)
	}
	if got := ErrCodeUpstreamPayfast.HTTPStatus(); got != http.StatusBadGateway {
		t.Errorf("upstream code: got %d, want 502", got)
	}
	if got := ErrCodeInternalDB.HTTPStatus(); got != http.StatusInternalServerError {
		t.Errorf("internal code: got %d, want 500", got)
	}
	if got := ErrorCode("something_unknown").HTTPStatus(); got != http.StatusInternalServerError {
		t.Errorf("unknown code: got %d, want 500", got)
	}
}

func TestIsVerificationFailure(t *testing.T) {
	verification := []ErrorCode{
		ErrCodeSignatureMismatch,
		ErrCodeOriginNotTrusted,
		ErrCodeServerConfirmationFailed,
		ErrCodeMissingCorrelationID,
		ErrCodeMalformedPayload,
		ErrCodeSignatureHeaderMissing,
	}
	for _, c := range verification {
		if !c.IsVerificationFailure() {
			t.Errorf("%s should be a verification failure", c)
		}
	}
	if ErrCodeInternalDB.IsVerificationFailure() {
		t.Error("internal_database_error should not be a verification failure")
	}
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("digest mismatch")
	err := NewAppError(ErrCodeSignatureMismatch, "recomputed signature does not match", cause)

	if err.Error() != "verify_signature_mismatch: recomputed signature does not match" {
		t.Errorf("unexpected Error(): %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var appErr *AppError
	wrapped := NewAppError(ErrCodeUpstreamPayfast, "validate call failed", err)
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should match *AppError")
	}
	if appErr.Code != ErrCodeUpstreamPayfast {
		t.Errorf("outermost code = %s, want %s", appErr.Code, ErrCodeUpstreamPayfast)
	}
}

func TestAppError_WithDetails(t *testing.T) {
	base := NewAppError(ErrCodeOriginNotTrusted, "forwarded address not in allow-list", nil)
	derived := base.WithDetails(map[string]any{"forwarded_for": "203.0.113.7"})

	if len(base.Details) != 0 {
		t.Error("WithDetails must not mutate the original error")
	}
	if derived.Details["forwarded_for"] != "203.0.113.7" {
		t.Error("derived error missing merged detail")
	}
	if derived.Code != base.Code || derived.Message != base.Message {
		t.Error("derived error must preserve code and message")
	}
}
