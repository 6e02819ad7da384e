package payfast

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paybridge/internal/config"
	"paybridge/internal/types"
)

func testConfig() config.PayfastConfig {
	return config.PayfastConfig{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  testPassphrase,
		Host:        "sandbox.payfast.co.za",
		BuyURL:      "https://shop.example.com/buy",
		ReturnURL:   "https://shop.example.com/return",
		CancelURL:   "https://shop.example.com/cancel",
		NotifyURL:   "https://api.example.com/webhooks/payfast",
	}
}

func testFacade(t *testing.T) *Payfast {
	t.Helper()
	cfg := testConfig()
	verifier := NewVerifier(VerifierOptions{Passphrase: cfg.Passphrase})
	return New(cfg, verifier, nil, nil)
}

func testUser() types.User {
	return types.User{
		FirstName: "Thandi",
		LastName:  "Nkosi",
		Email:     "thandi@example.com",
	}
}

func TestProvider(t *testing.T) {
	assert.Equal(t, types.ProviderPayfast, testFacade(t).Provider())
}

func TestGetContext(t *testing.T) {
	got, err := testFacade(t).GetContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/return", got.SuccessURL)
	assert.Equal(t, "https://shop.example.com/cancel", got.CancelURL)
	assert.Equal(t, "https://sandbox.payfast.co.za/eng/process", got.ProcessURL)
	assert.Equal(t, "https://shop.example.com/buy", got.BuyURL)
	assert.Empty(t, got.PublishableKey, "no foreign provider fields")
}

func TestCreateCustomer_AssignsLocalID(t *testing.T) {
	p := testFacade(t)
	got, err := p.CreateCustomer(context.Background(), testUser())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.CustomerID, "cus_"))
	assert.Equal(t, "thandi@example.com", got.Email)

	again, err := p.CreateCustomer(context.Background(), testUser())
	require.NoError(t, err)
	assert.NotEqual(t, got.CustomerID, again.CustomerID)
}

func TestDestroyCustomer_NoOp(t *testing.T) {
	require.NoError(t, testFacade(t).DestroyCustomer(context.Background(), "cus_whatever"))
}

func TestCreateIntent_BuildsSignedForm(t *testing.T) {
	p := testFacade(t)
	user := testUser()
	user.CustomerID = "cus_local01234"

	intent, err := p.CreateIntent(context.Background(), user, "Gold Plan", 14999, "ZAR")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(intent.PaymentID, "pf_"))
	assert.Equal(t, "cus_local01234", intent.CustomerID)
	assert.Equal(t, int64(14999), intent.Amount)
	assert.Equal(t, "ZAR", intent.Currency)

	var form IntentForm
	require.NoError(t, json.Unmarshal([]byte(intent.Data), &form))
	assert.Equal(t, "10000100", form.MerchantID)
	assert.Equal(t, "46f0cd694581a", form.MerchantKey)
	assert.Equal(t, intent.PaymentID, form.MPaymentID)
	assert.Equal(t, "149.99", form.Amount)
	assert.Equal(t, "Gold Plan", form.ItemName)
	assert.Equal(t, "https://shop.example.com/return?ref="+intent.PaymentID, form.ReturnURL)
	assert.Equal(t, "https://shop.example.com/cancel?ref="+intent.PaymentID, form.CancelURL)
	assert.Equal(t, "https://api.example.com/webhooks/payfast", form.NotifyURL)

	// The embedded signature must be the digest of the form's own fields.
	wantSig := Sign(ParamString(form.signedFields()), types.SecretString(testPassphrase))
	assert.Equal(t, wantSig, form.Signature)
	assert.True(t, strings.HasSuffix(form.ParamString, "&signature="+form.Signature))
}

func TestCreateIntent_OmitsAbsentLastName(t *testing.T) {
	p := testFacade(t)
	user := testUser()
	user.LastName = ""

	intent, err := p.CreateIntent(context.Background(), user, "Gold Plan", 100, "ZAR")
	require.NoError(t, err)

	var form IntentForm
	require.NoError(t, json.Unmarshal([]byte(intent.Data), &form))
	assert.NotContains(t, form.ParamString, "name_last",
		"absent fields are excluded from canonicalization, not sent empty")
	wantSig := Sign(ParamString(form.signedFields()), types.SecretString(testPassphrase))
	assert.Equal(t, wantSig, form.Signature)
}

func TestCreateIntent_RejectsNonPositiveAmount(t *testing.T) {
	p := testFacade(t)
	for _, amount := range []int64{0, -100} {
		_, err := p.CreateIntent(context.Background(), testUser(), "Gold Plan", amount, "ZAR")
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeValidationInvalidAmount, appErr.Code)
	}
}

func TestMinorToMajor(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{100, "1.00"},
		{1, "0.01"},
		{99, "0.99"},
		{14999, "149.99"},
		{1000000, "10000.00"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, minorToMajor(c.minor), "minor %d", c.minor)
	}
}

func TestVerifyEvent_CompleteStatusMapping(t *testing.T) {
	p := testFacade(t)
	fields := []Field{
		{"m_payment_id", "pf_4Ac9XWmEjNa"},
		{"payment_status", "COMPLETE"},
		{"amount_gross", "1.00"},
	}

	event, err := p.VerifyEvent(context.Background(), signedDelivery(t, fields, ""))
	require.NoError(t, err)
	assert.Equal(t, "pf_4Ac9XWmEjNa", event.PaymentID)
	assert.Equal(t, "COMPLETE", event.Type)
	assert.True(t, event.IsComplete())

	var data map[string]string
	require.NoError(t, json.Unmarshal([]byte(event.Data), &data))
	assert.Equal(t, "1.00", data["amount_gross"])
}

func TestVerifyEvent_UnmappedStatusIsAbsentNotError(t *testing.T) {
	p := testFacade(t)
	for _, status := range []string{"CANCELLED", "PENDING", "FAILED", "complete"} {
		fields := []Field{
			{"m_payment_id", "pf_4Ac9XWmEjNa"},
			{"payment_status", status},
		}
		event, err := p.VerifyEvent(context.Background(), signedDelivery(t, fields, ""))
		require.NoError(t, err, "status %q", status)
		assert.Nil(t, event.Status, "status %q must not map to a canonical status", status)
		assert.Equal(t, status, event.Type, "raw status is preserved as the event type")
	}
}

func TestVerifyEvent_MissingCorrelationID(t *testing.T) {
	p := testFacade(t)
	fields := []Field{
		{"pf_payment_id", "1089250"},
		{"payment_status", "COMPLETE"},
	}
	_, err := p.VerifyEvent(context.Background(), signedDelivery(t, fields, ""))
	assertVerifyCode(t, err, types.ErrCodeMissingCorrelationID)
}

func TestVerifyEvent_RejectionYieldsNoEvent(t *testing.T) {
	p := testFacade(t)
	raw, err := FieldsToJSON(append(notificationFields(), Field{signatureKey, "abc"}))
	require.NoError(t, err)

	event, err := p.VerifyEvent(context.Background(), types.WebhookDelivery{RawBody: []byte(raw)})
	assertVerifyCode(t, err, types.ErrCodeSignatureMismatch)
	assert.Zero(t, event, "a rejected delivery must never produce a partial event")
}

// End to end: create a one-rand intent, replay the gateway's completion
// notification for it, and confirm the verified event correlates back to the
// intent. Then tamper with the signature and confirm rejection.
func TestIntentToEventRoundTrip(t *testing.T) {
	p := testFacade(t)
	user := testUser()

	intent, err := p.CreateIntent(context.Background(), user, "Gold Plan", 100, "zar")
	require.NoError(t, err)
	assert.Equal(t, "ZAR", intent.Currency)

	delivery, err := p.SimulateNotification(intent, user, "Gold Plan", "COMPLETE")
	require.NoError(t, err)

	event, err := p.VerifyEvent(context.Background(), delivery)
	require.NoError(t, err)
	assert.Equal(t, intent.PaymentID, event.PaymentID)
	assert.True(t, event.IsComplete())

	var data map[string]string
	require.NoError(t, json.Unmarshal([]byte(event.Data), &data))
	assert.Equal(t, "1.00", data["amount_gross"])
	assert.Equal(t, "thandi@example.com", data["email_address"])

	// Same payload with a forged signature must be rejected.
	forged := strings.Replace(string(delivery.RawBody),
		`"signature":"`+data["signature"], `"signature":"abc`, 1)
	require.NotEqual(t, string(delivery.RawBody), forged)

	_, err = p.VerifyEvent(context.Background(), types.WebhookDelivery{
		RawBody: []byte(forged),
		Headers: delivery.Headers,
	})
	assertVerifyCode(t, err, types.ErrCodeSignatureMismatch)
}

func TestSimulateNotification_Shape(t *testing.T) {
	p := testFacade(t)
	user := testUser()
	intent, err := p.CreateIntent(context.Background(), user, "Gold Plan", 2000, "ZAR")
	require.NoError(t, err)

	delivery, err := p.SimulateNotification(intent, user, "Gold Plan", "CANCELLED")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", delivery.ForwardedFor())

	fields, err := ParseFields(delivery.RawBody)
	require.NoError(t, err)

	gross, _ := FieldValue(fields, "amount_gross")
	fee, _ := FieldValue(fields, "amount_fee")
	net, _ := FieldValue(fields, "amount_net")
	assert.Equal(t, "20.00", gross)
	assert.Equal(t, "1.00", fee)
	assert.Equal(t, "19.00", net)

	status, _ := FieldValue(fields, "payment_status")
	assert.Equal(t, "CANCELLED", status)

	id, _ := FieldValue(fields, "m_payment_id")
	assert.Equal(t, intent.PaymentID, id)
}
