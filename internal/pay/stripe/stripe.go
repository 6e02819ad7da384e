// Package stripe implements the Stripe payment provider: customer lifecycle,
// PaymentIntent creation with mobile-ready ephemeral keys, timestamped
// HMAC-SHA256 webhook verification, and webhook endpoint management.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"paybridge/internal/config"
	"paybridge/internal/pay"
	"paybridge/internal/types"
)

// ephemeralKeyAPIVersion pins the API version ephemeral keys are minted
// against. Mobile SDKs require a fixed version here, independent of the
// account's default.
const ephemeralKeyAPIVersion = "2023-10-16"

// IntentData is the provider payload returned from CreateIntent. It carries
// everything a mobile or web client needs to drive the PaymentSheet flow.
type IntentData struct {
	ClientSecret   string `json:"client_secret"`
	EphemeralKey   string `json:"ephemeral_key"`
	CustomerID     string `json:"customer_id"`
	PublishableKey string `json:"publishable_key"`
}

// Stripe implements the pay.Pay capability against the Stripe API.
type Stripe struct {
	cfg      config.StripeConfig
	sc       *client.API
	verifier *Verifier
	logger   *slog.Logger
}

// New creates the Stripe provider facade with a client initialized from the
// configured secret key.
func New(cfg config.StripeConfig, logger *slog.Logger) *Stripe {
	sc := &client.API{}
	sc.Init(cfg.SecretKey.Unmask(), nil)
	return NewWithClient(cfg, sc, logger)
}

// NewWithClient creates the facade around an existing API client. Used by
// tests that point the client at a stub backend.
func NewWithClient(cfg config.StripeConfig, sc *client.API, logger *slog.Logger) *Stripe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stripe{
		cfg:      cfg,
		sc:       sc,
		verifier: NewVerifier(cfg.WebhookSecret, logger),
		logger:   logger,
	}
}

// Provider identifies this facade.
func (s *Stripe) Provider() types.Provider {
	return types.ProviderStripe
}

// GetContext returns the client-side checkout initialization values.
func (s *Stripe) GetContext(_ context.Context) (types.ProviderContext, error) {
	return types.ProviderContext{
		SuccessURL:          s.cfg.SuccessURL,
		CancelURL:           s.cfg.CancelURL,
		PublishableKey:      s.cfg.PublishableKey,
		URLScheme:           s.cfg.URLScheme,
		MerchantIdentifier:  s.cfg.MerchantIdentifier,
		MerchantDisplayName: s.cfg.MerchantDisplayName,
	}, nil
}

// CreateCustomer registers the user as a Stripe customer and returns the
// user with the provider-assigned customer id.
func (s *Stripe) CreateCustomer(ctx context.Context, user types.User) (types.User, error) {
	params := &stripeapi.CustomerParams{
		Name:  stripeapi.String(strings.TrimSpace(user.FirstName + " " + user.LastName)),
		Email: stripeapi.String(user.Email),
	}
	if user.Phone != "" {
		params.Phone = stripeapi.String(user.Phone)
	}
	params.Context = ctx

	cust, err := s.sc.Customers.New(params)
	if err != nil {
		return types.User{}, mapStripeError("creating customer", err)
	}

	user.CustomerID = cust.ID
	return user, nil
}

// DestroyCustomer deletes the Stripe customer record.
func (s *Stripe) DestroyCustomer(ctx context.Context, customerID string) error {
	params := &stripeapi.CustomerParams{}
	params.Context = ctx
	if _, err := s.sc.Customers.Del(customerID, params); err != nil {
		return mapStripeError("deleting customer", err)
	}
	return nil
}

// CreateIntent creates a PaymentIntent plus the ephemeral key the client
// SDK needs to act on the customer. Amount is passed through in minor units;
// Stripe's wire format is already minor-unit integers.
func (s *Stripe) CreateIntent(ctx context.Context, user types.User, item string, amount int64, currency string) (types.PaymentIntent, error) {
	if amount <= 0 {
		return types.PaymentIntent{}, types.NewAppError(
			types.ErrCodeValidationInvalidAmount,
			"amount must be a positive number of minor units",
			nil,
		)
	}
	if user.CustomerID == "" {
		return types.PaymentIntent{}, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"stripe intents require a customer id; create the customer first",
			nil,
		)
	}

	ekParams := &stripeapi.EphemeralKeyParams{
		Customer:      stripeapi.String(user.CustomerID),
		StripeVersion: stripeapi.String(ephemeralKeyAPIVersion),
	}
	ekParams.Context = ctx
	ephemeralKey, err := s.sc.EphemeralKeys.New(ekParams)
	if err != nil {
		return types.PaymentIntent{}, mapStripeError("creating ephemeral key", err)
	}

	piParams := &stripeapi.PaymentIntentParams{
		Amount:      stripeapi.Int64(amount),
		Currency:    stripeapi.String(strings.ToLower(currency)),
		Customer:    stripeapi.String(user.CustomerID),
		Description: stripeapi.String(item),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	piParams.Context = ctx
	pi, err := s.sc.PaymentIntents.New(piParams)
	if err != nil {
		return types.PaymentIntent{}, mapStripeError("creating payment intent", err)
	}

	data, err := json.Marshal(IntentData{
		ClientSecret:   pi.ClientSecret,
		EphemeralKey:   ephemeralKey.Secret,
		CustomerID:     user.CustomerID,
		PublishableKey: s.cfg.PublishableKey,
	})
	if err != nil {
		return types.PaymentIntent{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize intent data",
			err,
		)
	}

	return types.PaymentIntent{
		PaymentID:  pi.ID,
		CustomerID: user.CustomerID,
		Amount:     amount,
		Currency:   types.NormalizeCurrency(currency),
		Data:       string(data),
	}, nil
}

// VerifyEvent authenticates a webhook delivery and normalizes it into the
// canonical event shape.
func (s *Stripe) VerifyEvent(ctx context.Context, delivery types.WebhookDelivery) (types.PaymentEvent, error) {
	return s.verifier.Verify(ctx, delivery)
}

// mapStripeError translates a stripe-go error into the platform taxonomy.
func mapStripeError(operation string, err error) error {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripeapi.ErrorCodeResourceMissing {
			return types.NewAppError(
				types.ErrCodeNotFoundCustomer,
				operation+": stripe resource not found",
				err,
			)
		}
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			operation+": "+stripeErr.Msg,
			err,
		)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		operation+": stripe request failed",
		err,
	)
}

// Compile-time assertion that Stripe satisfies pay.Pay.
var _ pay.Pay = (*Stripe)(nil)
