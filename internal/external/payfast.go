package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// validResponseBody is the literal body PayFast returns from its validate
// endpoint when it recognizes the notification as one it sent.
const validResponseBody = "VALID"

// ErrNotValid is returned by Confirm when PayFast responds with anything
// other than the literal "VALID" body.
var ErrNotValid = errors.New("payfast validate endpoint did not return VALID")

// PayfastClient talks to PayFast's non-checkout HTTP surface: the
// synchronous notification-validation endpoint and the API ping endpoint.
// All calls route through BaseClient for retries and circuit breaking.
type PayfastClient struct {
	base        *BaseClient
	validateURL string
	pingURL     string
	logger      *slog.Logger
}

// PayfastClientConfig holds the endpoint configuration for a PayfastClient.
type PayfastClientConfig struct {
	ValidateURL string
	PingURL     string
	Logger      *slog.Logger
}

// NewPayfastClient creates a PayfastClient with its own BaseClient. The
// httpClient timeout bounds each attempt; the overall call is additionally
// bounded by the caller's context.
func NewPayfastClient(httpClient *http.Client, cfg PayfastClientConfig) *PayfastClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := NewBaseClient(
		httpClient,
		"payfast",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"PayBridge/1.0",
	)
	return &PayfastClient{
		base:        base,
		validateURL: cfg.ValidateURL,
		pingURL:     cfg.PingURL,
		logger:      logger,
	}
}

// NewPayfastClientWithBase creates a PayfastClient with a pre-configured
// BaseClient. Useful in tests for controlling retry/breaker behavior.
func NewPayfastClientWithBase(base *BaseClient, cfg PayfastClientConfig) *PayfastClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PayfastClient{
		base:        base,
		validateURL: cfg.ValidateURL,
		pingURL:     cfg.PingURL,
		logger:      logger,
	}
}

// Confirm posts the canonical parameter string back to PayFast's validate
// endpoint. It returns nil only when PayFast answers with the literal body
// "VALID". Any other body yields ErrNotValid; transport failures surface
// as-is. The caller decides how to classify either outcome.
func (c *PayfastClient) Confirm(ctx context.Context, paramString string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.validateURL, strings.NewReader(paramString))
	if err != nil {
		return fmt.Errorf("building validate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.base.Do(req)
	if err != nil {
		return fmt.Errorf("posting to validate endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("reading validate response: %w", err)
	}

	got := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK || got != validResponseBody {
		c.logger.WarnContext(ctx, "payfast server confirmation rejected",
			"status", resp.StatusCode,
			"body", got,
		)
		return ErrNotValid
	}

	return nil
}

// Ping performs a signed GET against the PayFast API ping endpoint and
// returns the response body. The caller supplies the signed header set
// (merchant-id, version, timestamp, signature); signing lives with the
// signature codec, not here.
func (c *PayfastClient) Ping(ctx context.Context, signedHeaders map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pingURL, nil)
	if err != nil {
		return "", fmt.Errorf("building ping request: %w", err)
	}
	for k, v := range signedHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinging payfast: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("reading ping response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ping returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return strings.TrimSpace(string(body)), nil
}
