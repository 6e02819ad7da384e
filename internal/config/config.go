// Package config defines the global configuration structure for the
// PayBridge platform. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by
// strictly separating code from configuration.
//
// Any missing required value or invalid format causes the application to
// fail fast on startup.
package config

import (
	"fmt"
	"time"

	"paybridge/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the PayBridge platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"paybridge"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations
	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Payfast  PayfastConfig
	Stripe   StripeConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public base URL for webhook notify endpoints (no trailing slash),
	// e.g. https://api.example.com
	APIExternalURL string `envconfig:"API_EXTERNAL_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// EventQueueURL is the SQS queue receiving normalized payment events.
	EventQueueURL string `envconfig:"SQS_PAYMENT_EVENTS" validate:"required,url"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// PayfastConfig holds PayFast merchant credentials, redirect URLs, and the
// feature flags gating the optional webhook verification steps.
type PayfastConfig struct {
	MerchantID  string       `envconfig:"PAYFAST_MERCHANT_ID" validate:"required"`
	MerchantKey SecretString `envconfig:"PAYFAST_MERCHANT_KEY" validate:"required"`
	// Passphrase may be empty: PayFast accounts without a configured
	// passphrase sign over the bare parameter string.
	Passphrase SecretString `envconfig:"PAYFAST_PASSPHRASE"`

	// Host is the PayFast gateway host, e.g. sandbox.payfast.co.za.
	Host      string `envconfig:"PAYFAST_HOST" default:"sandbox.payfast.co.za"`
	BuyURL    string `envconfig:"PAYFAST_BUY_URL" validate:"required,url"`
	ReturnURL string `envconfig:"PAYFAST_RETURN_URL" validate:"required,url"`
	CancelURL string `envconfig:"PAYFAST_CANCEL_URL" validate:"required,url"`
	NotifyURL string `envconfig:"PAYFAST_NOTIFY_URL" validate:"required,url"`

	// HookCheckAddress enables the origin gate: the delivery's forwarded-for
	// address must resolve to a known PayFast host.
	HookCheckAddress bool `envconfig:"PAYFAST_HOOK_CHECK_ADDRESS" default:"false"`
	// HookCheckServer enables the server-confirmation gate: the canonical
	// parameter string is posted back to PayFast's validate endpoint.
	HookCheckServer bool `envconfig:"PAYFAST_HOOK_CHECK_SERVER" default:"false"`
}

// ProcessURL returns the PayFast checkout process URL for this host.
func (c PayfastConfig) ProcessURL() string {
	return fmt.Sprintf("https://%s/eng/process", c.Host)
}

// ValidateURL returns the PayFast synchronous server-confirmation endpoint.
func (c PayfastConfig) ValidateURL() string {
	return fmt.Sprintf("https://%s/eng/query/validate", c.Host)
}

// PingURL returns the PayFast API health endpoint.
func (c PayfastConfig) PingURL() string {
	return fmt.Sprintf("https://%s/ping", c.Host)
}

// StripeConfig holds Stripe credentials and client-side checkout display
// configuration.
type StripeConfig struct {
	SecretKey SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	// WebhookSecret may be empty in local/dev environments, which switches
	// the verifier into its explicitly insecure trust-the-body fallback.
	WebhookSecret  SecretString `envconfig:"STRIPE_WEBHOOK_SECRET"`
	PublishableKey string       `envconfig:"STRIPE_PUBLISHABLE_KEY" validate:"required"`

	URLScheme           string `envconfig:"STRIPE_URL_SCHEME"`
	MerchantIdentifier  string `envconfig:"STRIPE_MERCHANT_IDENTIFIER"`
	MerchantDisplayName string `envconfig:"STRIPE_MERCHANT_DISPLAY_NAME" validate:"required"`
	SuccessURL          string `envconfig:"STRIPE_SUCCESS_URL" validate:"required,url"`
	CancelURL           string `envconfig:"STRIPE_CANCEL_URL"`

	// ManageWebhookEndpoint makes the API register its own webhook notify
	// endpoint with Stripe on startup.
	ManageWebhookEndpoint bool `envconfig:"STRIPE_MANAGE_WEBHOOK_ENDPOINT" default:"false"`
}
