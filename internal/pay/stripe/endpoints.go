package stripe

import (
	"context"

	stripeapi "github.com/stripe/stripe-go/v82"

	"paybridge/internal/types"
)

// enabledEvents are the event types registered on managed webhook
// endpoints. Only payment lifecycle events are of interest.
var enabledEvents = []string{
	"payment_intent.succeeded",
	"payment_intent.payment_failed",
	"payment_intent.canceled",
}

// EnsureWebhookEndpoint registers notifyURL as a webhook endpoint unless one
// already exists for it. The returned secret is non-empty only when the
// endpoint was just created: Stripe reveals an endpoint's signing secret
// exactly once, so an existing endpoint yields an empty secret and the
// configured STRIPE_WEBHOOK_SECRET stays authoritative.
func (s *Stripe) EnsureWebhookEndpoint(ctx context.Context, notifyURL string) (secret string, err error) {
	existing, err := s.findWebhookEndpoint(ctx, notifyURL)
	if err != nil {
		return "", err
	}
	if existing != nil {
		s.logger.DebugContext(ctx, "stripe webhook endpoint already registered",
			"endpoint_id", existing.ID, "url", notifyURL)
		return "", nil
	}

	params := &stripeapi.WebhookEndpointParams{
		URL:           stripeapi.String(notifyURL),
		EnabledEvents: stripeapi.StringSlice(enabledEvents),
	}
	params.Context = ctx

	endpoint, err := s.sc.WebhookEndpoints.New(params)
	if err != nil {
		return "", mapStripeError("registering webhook endpoint", err)
	}

	s.logger.InfoContext(ctx, "stripe webhook endpoint registered",
		"endpoint_id", endpoint.ID, "url", notifyURL)
	return endpoint.Secret, nil
}

// RemoveWebhookEndpoint deletes the managed endpoint for notifyURL, if any.
func (s *Stripe) RemoveWebhookEndpoint(ctx context.Context, notifyURL string) error {
	existing, err := s.findWebhookEndpoint(ctx, notifyURL)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	params := &stripeapi.WebhookEndpointParams{}
	params.Context = ctx
	if _, err := s.sc.WebhookEndpoints.Del(existing.ID, params); err != nil {
		return mapStripeError("removing webhook endpoint", err)
	}
	return nil
}

// findWebhookEndpoint scans registered endpoints for one with the given URL.
func (s *Stripe) findWebhookEndpoint(ctx context.Context, notifyURL string) (*stripeapi.WebhookEndpoint, error) {
	params := &stripeapi.WebhookEndpointListParams{}
	params.Context = ctx

	iter := s.sc.WebhookEndpoints.List(params)
	for iter.Next() {
		endpoint := iter.WebhookEndpoint()
		if endpoint.URL == notifyURL {
			return endpoint, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStripe,
			"listing webhook endpoints: stripe request failed",
			err,
		)
	}
	return nil, nil
}
