// Package pay defines the provider-agnostic payment capability contract.
// Each supported processor (PayFast, Stripe) implements the Pay interface in
// its own subpackage; callers depend only on this contract and the canonical
// types, never on a vendor SDK.
package pay

import (
	"context"

	"paybridge/internal/types"
)

// Pay is the common capability surface of a payment provider: create a
// customer, create a payment intent, verify an inbound webhook event, and
// retrieve provider context for client-side checkout initialization.
//
// VerifyEvent is the security boundary of the platform. Implementations must
// authenticate the delivery before any normalization and surface every
// rejection as a *types.AppError carrying one of the verify_* error codes.
// A failed verification is terminal for that delivery attempt; the
// provider's own retry-on-non-200 semantics handle redelivery.
type Pay interface {
	// Provider returns the identifier of the backing processor.
	Provider() types.Provider

	// GetContext returns the static provider values a client needs to
	// initialize checkout. Derived entirely from configuration.
	GetContext(ctx context.Context) (types.ProviderContext, error)

	// CreateCustomer registers the user with the provider and returns a
	// copy with the provider-assigned CustomerID populated.
	CreateCustomer(ctx context.Context, user types.User) (types.User, error)

	// DestroyCustomer removes the provider-side customer record.
	DestroyCustomer(ctx context.Context, customerID string) error

	// CreateIntent starts a checkout attempt for the given item. Amount is
	// in integer minor currency units; currency is case-insensitive on
	// input and canonicalized to uppercase.
	CreateIntent(ctx context.Context, user types.User, item string, amount int64, currency string) (types.PaymentIntent, error)

	// VerifyEvent authenticates an inbound webhook delivery and normalizes
	// it into the canonical event shape. Blocking secondary checks (DNS
	// resolution, server confirmation) honor ctx cancellation; callers
	// wanting a deadline supply it on ctx.
	VerifyEvent(ctx context.Context, delivery types.WebhookDelivery) (types.PaymentEvent, error)
}

// Registry resolves a Pay implementation by provider identifier. The webhook
// and payment handlers use it to route per-provider requests.
type Registry struct {
	providers map[types.Provider]Pay
}

// NewRegistry builds a Registry from the given implementations.
func NewRegistry(impls ...Pay) *Registry {
	r := &Registry{providers: make(map[types.Provider]Pay, len(impls))}
	for _, p := range impls {
		r.providers[p.Provider()] = p
	}
	return r
}

// Get returns the Pay implementation for the provider, or an AppError with
// code validation_invalid_provider when none is registered.
func (r *Registry) Get(provider types.Provider) (Pay, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidProvider,
			"no payment provider registered for "+string(provider),
			nil,
		)
	}
	return p, nil
}
