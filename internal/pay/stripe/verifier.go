package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/stripe/stripe-go/v82/webhook"

	"paybridge/internal/types"
)

// signatureHeader is the header carrying Stripe's timestamped signature.
const signatureHeader = "Stripe-Signature"

// completeEventType is the Stripe event type that maps to the canonical
// COMPLETE status. Every other type normalizes with an absent status.
const completeEventType = "payment_intent.succeeded"

// eventEnvelope is the minimal wire shape needed to normalize a Stripe
// event. The full stripe-go Event type is not used here: normalization only
// needs the type and the raw inner object, and the raw bytes are what the
// signature vouched for.
type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Verifier authenticates inbound Stripe webhook deliveries. With a signing
// secret configured it checks the timestamped HMAC-SHA256 signature over the
// exact raw payload bytes. Without one it falls back to trusting the body,
// which is only acceptable against the Stripe CLI in local development; the
// fallback logs a warning on every delivery.
type Verifier struct {
	secret types.SecretString
	logger *slog.Logger
}

// NewVerifier creates a Verifier for the given signing secret. An empty
// secret selects the insecure development fallback.
func NewVerifier(secret types.SecretString, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{secret: secret, logger: logger}
}

// Verify authenticates the delivery and normalizes it into the canonical
// event shape. PaymentID is the id of the event's inner object, which for
// payment events is the PaymentIntent id assigned at creation.
func (v *Verifier) Verify(ctx context.Context, delivery types.WebhookDelivery) (types.PaymentEvent, error) {
	if v.secret.IsZero() {
		v.logger.WarnContext(ctx, "stripe webhook accepted without signature verification; configure STRIPE_WEBHOOK_SECRET outside local development")
		return normalizeEvent(delivery.RawBody)
	}

	header := delivery.Headers.Get(signatureHeader)
	if header == "" {
		return types.PaymentEvent{}, types.NewAppError(
			types.ErrCodeSignatureHeaderMissing,
			"delivery carries no Stripe-Signature header",
			nil,
		)
	}

	_, err := webhook.ConstructEventWithOptions(
		delivery.RawBody,
		header,
		v.secret.Unmask(),
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return types.PaymentEvent{}, classifyWebhookError(err)
	}

	// The signature covers the exact raw bytes; normalize from those.
	return normalizeEvent(delivery.RawBody)
}

// classifyWebhookError maps stripe-go webhook errors onto the verification
// taxonomy. Signature-scheme failures, including expired timestamps, are
// signature mismatches; anything else means the payload itself is broken.
func classifyWebhookError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrTooOld):
		return types.NewAppError(
			types.ErrCodeSignatureMismatch,
			"stripe signature verification failed",
			err,
		)
	default:
		return types.NewAppError(
			types.ErrCodeMalformedPayload,
			"stripe event payload could not be parsed",
			err,
		)
	}
}

// normalizeEvent maps a verified event payload to the canonical
// PaymentEvent.
func normalizeEvent(raw []byte) (types.PaymentEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return types.PaymentEvent{}, types.NewAppError(
			types.ErrCodeMalformedPayload,
			"stripe event payload is not a valid event object",
			err,
		)
	}

	var object struct {
		ID string `json:"id"`
	}
	if len(envelope.Data.Object) > 0 {
		if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
			return types.PaymentEvent{}, types.NewAppError(
				types.ErrCodeMalformedPayload,
				"stripe event data.object is not a JSON object",
				err,
			)
		}
	}
	if object.ID == "" {
		return types.PaymentEvent{}, types.NewAppError(
			types.ErrCodeMissingCorrelationID,
			"stripe event carries no data.object.id",
			nil,
		)
	}

	event := types.PaymentEvent{
		PaymentID: object.ID,
		Type:      envelope.Type,
		Data:      string(envelope.Data.Object),
	}
	if envelope.Type == completeEventType {
		event.Status = types.StatusPtr(types.StatusComplete)
	}
	return event, nil
}
