package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paybridge/internal/types"
)

const testWebhookSecret = "whsec_test_secret"

// signHeader builds a Stripe-Signature header over the payload the way
// Stripe's servers do: v1 = HMAC-SHA256(secret, "{timestamp}.{payload}").
func signHeader(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, objectID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","type":%q,"data":{"object":{"id":%q,"status":"succeeded","amount":100,"currency":"zar"}}}`,
		eventType, objectID,
	))
}

func signedDelivery(payload []byte, secret string) types.WebhookDelivery {
	headers := http.Header{}
	headers.Set(signatureHeader, signHeader(payload, secret, time.Now()))
	return types.WebhookDelivery{RawBody: payload, Headers: headers}
}

func assertVerifyCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	assert.True(t, appErr.Code.IsVerificationFailure())
}

func TestVerify_ValidSignature(t *testing.T) {
	v := NewVerifier(testWebhookSecret, nil)
	payload := eventPayload("payment_intent.succeeded", "pi_3Abc")

	event, err := v.Verify(context.Background(), signedDelivery(payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "pi_3Abc", event.PaymentID)
	assert.Equal(t, "payment_intent.succeeded", event.Type)
	assert.True(t, event.IsComplete())
	assert.JSONEq(t,
		`{"id":"pi_3Abc","status":"succeeded","amount":100,"currency":"zar"}`,
		event.Data,
		"event data is the inner object, not the envelope")
}

func TestVerify_MissingSignatureHeader(t *testing.T) {
	v := NewVerifier(testWebhookSecret, nil)
	_, err := v.Verify(context.Background(), types.WebhookDelivery{
		RawBody: eventPayload("payment_intent.succeeded", "pi_3Abc"),
		Headers: http.Header{},
	})
	assertVerifyCode(t, err, types.ErrCodeSignatureHeaderMissing)
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewVerifier(testWebhookSecret, nil)
	payload := eventPayload("payment_intent.succeeded", "pi_3Abc")
	_, err := v.Verify(context.Background(), signedDelivery(payload, "whsec_other"))
	assertVerifyCode(t, err, types.ErrCodeSignatureMismatch)
}

func TestVerify_TamperedPayload(t *testing.T) {
	v := NewVerifier(testWebhookSecret, nil)
	payload := eventPayload("payment_intent.succeeded", "pi_3Abc")
	delivery := signedDelivery(payload, testWebhookSecret)
	delivery.RawBody = eventPayload("payment_intent.succeeded", "pi_forged")

	_, err := v.Verify(context.Background(), delivery)
	assertVerifyCode(t, err, types.ErrCodeSignatureMismatch)
}

func TestVerify_StaleTimestamp(t *testing.T) {
	v := NewVerifier(testWebhookSecret, nil)
	payload := eventPayload("payment_intent.succeeded", "pi_3Abc")

	headers := http.Header{}
	headers.Set(signatureHeader, signHeader(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
	_, err := v.Verify(context.Background(), types.WebhookDelivery{RawBody: payload, Headers: headers})
	assertVerifyCode(t, err, types.ErrCodeSignatureMismatch)
}

func TestVerify_GarbageHeader(t *testing.T) {
	v := NewVerifier(testWebhookSecret, nil)
	payload := eventPayload("payment_intent.succeeded", "pi_3Abc")

	headers := http.Header{}
	headers.Set(signatureHeader, "not-a-signature")
	_, err := v.Verify(context.Background(), types.WebhookDelivery{RawBody: payload, Headers: headers})
	assertVerifyCode(t, err, types.ErrCodeSignatureMismatch)
}

func TestVerify_UnmappedEventType(t *testing.T) {
	v := NewVerifier(testWebhookSecret, nil)
	for _, eventType := range []string{"payment_intent.payment_failed", "payment_intent.canceled", "charge.refunded"} {
		payload := eventPayload(eventType, "pi_3Abc")
		event, err := v.Verify(context.Background(), signedDelivery(payload, testWebhookSecret))
		require.NoError(t, err, "type %q", eventType)
		assert.Nil(t, event.Status, "type %q must not map to a canonical status", eventType)
		assert.Equal(t, eventType, event.Type)
	}
}

func TestVerify_MissingObjectID(t *testing.T) {
	v := NewVerifier(testWebhookSecret, nil)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"status":"succeeded"}}}`)
	_, err := v.Verify(context.Background(), signedDelivery(payload, testWebhookSecret))
	assertVerifyCode(t, err, types.ErrCodeMissingCorrelationID)
}

func TestVerify_SecretlessFallback(t *testing.T) {
	// No secret configured: the body is trusted as-is. Local development only.
	v := NewVerifier("", nil)
	payload := eventPayload("payment_intent.succeeded", "pi_3Abc")

	event, err := v.Verify(context.Background(), types.WebhookDelivery{RawBody: payload, Headers: http.Header{}})
	require.NoError(t, err)
	assert.Equal(t, "pi_3Abc", event.PaymentID)
	assert.True(t, event.IsComplete())
}

func TestVerify_SecretlessFallbackStillRejectsGarbage(t *testing.T) {
	v := NewVerifier("", nil)
	_, err := v.Verify(context.Background(), types.WebhookDelivery{RawBody: []byte("not json")})
	assertVerifyCode(t, err, types.ErrCodeMalformedPayload)
}
