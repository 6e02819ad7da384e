// Package types defines the canonical domain model shared across the
// PayBridge platform: users, payment intents, canonical payment events,
// provider contexts, and the error taxonomy. Provider packages translate
// their vendor-native payloads into these types; nothing in this package
// depends on a specific provider.
package types

import (
	"net/http"
	"strings"
)

// Provider identifies a supported payment processor.
type Provider string

const (
	ProviderPayfast Provider = "payfast"
	ProviderStripe  Provider = "stripe"
)

// Valid reports whether the provider is one of the supported processors.
func (p Provider) Valid() bool {
	return p == ProviderPayfast || p == ProviderStripe
}

// PaymentStatus is the canonical status vocabulary for payment events.
// Provider-native statuses are mapped into this set; anything the mapping
// does not recognize is represented as an absent status (nil pointer), which
// callers must treat as "not yet complete / unrecognized", never as failure.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusComplete  PaymentStatus = "COMPLETE"
	StatusCancelled PaymentStatus = "CANCELLED"
)

// StatusPtr returns a pointer to the given status. Convenience for
// constructing PaymentEvent literals.
func StatusPtr(s PaymentStatus) *PaymentStatus {
	return &s
}

// User is a payment customer as seen by the caller. CustomerID is assigned
// by a provider at creation time and is the join key for all subsequent
// provider calls. A User is immutable once created except by destruction.
type User struct {
	CustomerID string `json:"customer_id"`
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty"`
}

// PaymentIntent represents a single checkout attempt. It is created once and
// never mutated. PaymentID is the cross-provider correlation key used to
// match a later webhook event back to this intent.
//
// Amount is always expressed in integer minor currency units (cents).
// Provider-specific major/minor conversions happen only inside the provider
// facades, never in verifiers or normalizers.
type PaymentIntent struct {
	PaymentID  string `json:"payment_id"`
	CustomerID string `json:"customer_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	// Data carries the opaque provider-specific payload (checkout form
	// fields, client secrets, ephemeral keys) serialized as JSON text.
	Data string `json:"data"`
}

// NormalizeCurrency canonicalizes an ISO 4217 currency code to uppercase.
// Currency comparisons throughout the platform are case-insensitive; this is
// the single place the canonical form is produced.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CurrencyEqual compares two ISO 4217 codes case-insensitively.
func CurrencyEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// PaymentEvent is the canonical shape of an authenticated webhook
// notification. It is ephemeral: produced once per authenticated delivery
// and handed to the caller; persistence is a caller concern.
//
// A PaymentEvent is never constructed from an unauthenticated payload --
// verification always precedes normalization.
type PaymentEvent struct {
	PaymentID string `json:"payment_id"`
	// Status is nil when the provider-native status did not map to the
	// canonical vocabulary. Absent is not an error.
	Status *PaymentStatus `json:"status,omitempty"`
	// Type is the provider's raw event-type or status string.
	Type string `json:"type"`
	// Data is the normalized provider payload serialized as JSON text.
	Data string `json:"data"`
}

// IsComplete reports whether the event carries the canonical COMPLETE status.
func (e PaymentEvent) IsComplete() bool {
	return e.Status != nil && *e.Status == StatusComplete
}

// ProviderContext carries the static, provider-specific values a client
// needs to initialize a checkout flow. It has no independent lifecycle and
// is recomputed from configuration on every request.
type ProviderContext struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url,omitempty"`

	// PayFast display fields.
	ProcessURL string `json:"process_url,omitempty"`
	BuyURL     string `json:"buy_url,omitempty"`

	// Stripe display fields.
	PublishableKey      string `json:"publishable_key,omitempty"`
	URLScheme           string `json:"url_scheme,omitempty"`
	MerchantIdentifier  string `json:"merchant_identifier,omitempty"`
	MerchantDisplayName string `json:"merchant_display_name,omitempty"`
}

// WebhookDelivery is a single inbound provider notification as captured at
// the HTTP boundary. RawBody must be the exact request bytes, captured
// before any JSON parsing: Stripe's signable material is raw-byte exact.
type WebhookDelivery struct {
	// Body is the parsed request body. PayFast deliveries parse to a flat
	// string-keyed mapping; Stripe deliveries to nested JSON. Verifiers
	// that need field order re-parse RawBody themselves.
	Body map[string]any
	// RawBody is the unmodified request payload.
	RawBody []byte
	// Headers carries at minimum the provider's signature header and, for
	// origin checks, a forwarded-for address.
	Headers http.Header
}

// ForwardedFor returns the first address from the X-Forwarded-For header,
// or the empty string when the header is absent.
func (d WebhookDelivery) ForwardedFor() string {
	v := d.Headers.Get("X-Forwarded-For")
	if v == "" {
		return ""
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
