package payfast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/external"
	"paybridge/internal/pay"
	"paybridge/internal/types"
)

// completeStatus is the PayFast payment_status value that maps to the
// canonical COMPLETE status. Every other value normalizes with an absent
// status.
const completeStatus = "COMPLETE"

// correlationKey is the PayFast field carrying the payment id assigned at
// intent creation.
const correlationKey = "m_payment_id"

// IntentForm is the once-off checkout form posted to PayFast's process
// endpoint. Field order here is the signing order; do not reorder.
type IntentForm struct {
	MerchantID   string `json:"merchant_id"`
	MerchantKey  string `json:"merchant_key"`
	ReturnURL    string `json:"return_url"`
	CancelURL    string `json:"cancel_url"`
	NotifyURL    string `json:"notify_url"`
	NameFirst    string `json:"name_first"`
	NameLast     string `json:"name_last,omitempty"`
	EmailAddress string `json:"email_address"`
	MPaymentID   string `json:"m_payment_id"`
	Amount       string `json:"amount"`
	ItemName     string `json:"item_name"`

	// Derived; not part of the signable field set.
	Signature   string `json:"signature"`
	ParamString string `json:"param_string"`
}

// signedFields returns the form's ordered signable field list. Absent
// optional fields are omitted entirely, not encoded as empty strings.
func (f IntentForm) signedFields() []Field {
	fields := []Field{
		{"merchant_id", f.MerchantID},
		{"merchant_key", f.MerchantKey},
		{"return_url", f.ReturnURL},
		{"cancel_url", f.CancelURL},
		{"notify_url", f.NotifyURL},
		{"name_first", f.NameFirst},
	}
	if f.NameLast != "" {
		fields = append(fields, Field{"name_last", f.NameLast})
	}
	fields = append(fields,
		Field{"email_address", f.EmailAddress},
		Field{"m_payment_id", f.MPaymentID},
		Field{"amount", f.Amount},
		Field{"item_name", f.ItemName},
	)
	return fields
}

// Payfast implements the pay.Pay capability against PayFast's redirect
// checkout flow. PayFast has no server-side customer or intent objects;
// customers get locally assigned ids and intents are self-contained signed
// forms.
type Payfast struct {
	cfg      config.PayfastConfig
	verifier *Verifier
	client   *external.PayfastClient
	logger   *slog.Logger
	now      func() time.Time
}

// New creates the PayFast provider facade. client may be nil when the ping
// surface is not needed (the verifier carries its own confirmer).
func New(cfg config.PayfastConfig, verifier *Verifier, client *external.PayfastClient, logger *slog.Logger) *Payfast {
	if logger == nil {
		logger = slog.Default()
	}
	return &Payfast{
		cfg:      cfg,
		verifier: verifier,
		client:   client,
		logger:   logger,
		now:      time.Now,
	}
}

// Provider identifies this facade.
func (p *Payfast) Provider() types.Provider {
	return types.ProviderPayfast
}

// GetContext returns the checkout initialization values. Derived entirely
// from configuration; recomputed per call.
func (p *Payfast) GetContext(_ context.Context) (types.ProviderContext, error) {
	return types.ProviderContext{
		SuccessURL: p.cfg.ReturnURL,
		CancelURL:  p.cfg.CancelURL,
		ProcessURL: p.cfg.ProcessURL(),
		BuyURL:     p.cfg.BuyURL,
	}, nil
}

// CreateCustomer assigns a locally generated customer id. PayFast keeps no
// customer records; the id exists so callers can correlate intents to a
// customer uniformly across providers.
func (p *Payfast) CreateCustomer(_ context.Context, user types.User) (types.User, error) {
	user.CustomerID = pay.NewCustomerID()
	return user, nil
}

// DestroyCustomer is a no-op: there is no provider-side record to remove.
func (p *Payfast) DestroyCustomer(ctx context.Context, customerID string) error {
	p.logger.DebugContext(ctx, "payfast customer destroyed locally", "customer_id", customerID)
	return nil
}

// CreateIntent builds the signed once-off checkout form for the user and
// item. The minor-to-major amount conversion happens here and only here;
// verifiers and normalizers never see major units.
func (p *Payfast) CreateIntent(_ context.Context, user types.User, item string, amount int64, currency string) (types.PaymentIntent, error) {
	if amount <= 0 {
		return types.PaymentIntent{}, types.NewAppError(
			types.ErrCodeValidationInvalidAmount,
			"amount must be a positive number of minor units",
			nil,
		)
	}

	paymentID := pay.NewPaymentID()
	form := IntentForm{
		MerchantID:   p.cfg.MerchantID,
		MerchantKey:  p.cfg.MerchantKey.Unmask(),
		ReturnURL:    p.cfg.ReturnURL + "?ref=" + paymentID,
		CancelURL:    p.cfg.CancelURL + "?ref=" + paymentID,
		NotifyURL:    p.cfg.NotifyURL,
		NameFirst:    user.FirstName,
		NameLast:     user.LastName,
		EmailAddress: user.Email,
		MPaymentID:   paymentID,
		Amount:       minorToMajor(amount),
		ItemName:     item,
	}

	paramString := ParamString(form.signedFields())
	form.Signature = Sign(paramString, p.cfg.Passphrase)
	form.ParamString = SignedParamString(paramString, form.Signature)

	data, err := json.Marshal(form)
	if err != nil {
		return types.PaymentIntent{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize checkout form",
			err,
		)
	}

	return types.PaymentIntent{
		PaymentID:  paymentID,
		CustomerID: user.CustomerID,
		Amount:     amount,
		Currency:   types.NormalizeCurrency(currency),
		Data:       string(data),
	}, nil
}

// VerifyEvent authenticates a notification delivery and normalizes it into
// the canonical event shape. Authentication always precedes normalization.
func (p *Payfast) VerifyEvent(ctx context.Context, delivery types.WebhookDelivery) (types.PaymentEvent, error) {
	fields, err := p.verifier.Verify(ctx, delivery)
	if err != nil {
		return types.PaymentEvent{}, err
	}
	return normalizeEvent(fields)
}

// normalizeEvent maps a verified field list to the canonical PaymentEvent.
// Only "COMPLETE" maps to a canonical status; any other payment_status
// yields an absent status, which is not an error. A missing correlation id
// is an error: an event that cannot be matched to its intent is useless.
func normalizeEvent(fields []Field) (types.PaymentEvent, error) {
	paymentID, ok := FieldValue(fields, correlationKey)
	if !ok || paymentID == "" {
		return types.PaymentEvent{}, types.NewAppError(
			types.ErrCodeMissingCorrelationID,
			"notification carries no m_payment_id",
			nil,
		)
	}

	status, _ := FieldValue(fields, "payment_status")
	data, err := FieldsToJSON(fields)
	if err != nil {
		return types.PaymentEvent{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize verified payload",
			err,
		)
	}

	event := types.PaymentEvent{
		PaymentID: paymentID,
		Type:      status,
		Data:      data,
	}
	if status == completeStatus {
		event.Status = types.StatusPtr(types.StatusComplete)
	}
	return event, nil
}

// Ping performs a signed call against PayFast's API health endpoint and
// returns the raw answer ("Payfast API" / "API V1").
func (p *Payfast) Ping(ctx context.Context) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("payfast ping client not configured")
	}

	fields := []Field{
		{"merchant-id", p.cfg.MerchantID},
		{"version", "v1"},
		{"timestamp", p.now().UTC().Format(time.RFC3339)},
	}
	signature := Sign(ParamString(fields), p.cfg.Passphrase)

	headers := make(map[string]string, len(fields)+1)
	for _, f := range fields {
		headers[f.Key] = f.Value
	}
	headers[signatureKey] = signature

	return p.client.Ping(ctx, headers)
}

// minorToMajor renders an integer minor-unit amount as the two-decimal
// major-unit string PayFast expects. Integer arithmetic; no float rounding.
func minorToMajor(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

// Compile-time assertion that Payfast satisfies pay.Pay.
var _ pay.Pay = (*Payfast)(nil)
