package payfast

import (
	"crypto/rand"
	"net/http"

	"paybridge/internal/types"
)

// SimulateNotification builds the delivery PayFast would send for the given
// intent reaching the given payment_status. The payload is signed with the
// facade's passphrase and carries a loopback forwarded-for address, so it
// passes a verifier with the origin gate disabled. Used by sandbox flows and
// end-to-end tests that need a notification without a gateway round-trip.
func (p *Payfast) SimulateNotification(intent types.PaymentIntent, user types.User, item string, status string) (types.WebhookDelivery, error) {
	gross := intent.Amount
	fee := gross / 20
	net := gross - fee

	fields := []Field{
		{"m_payment_id", intent.PaymentID},
		{"pf_payment_id", randomNumericID()},
		{"payment_status", status},
		{"item_name", item},
		{"amount_gross", minorToMajor(gross)},
		{"amount_fee", minorToMajor(fee)},
		{"amount_net", minorToMajor(net)},
		{"name_first", user.FirstName},
	}
	if user.LastName != "" {
		fields = append(fields, Field{"name_last", user.LastName})
	}
	fields = append(fields,
		Field{"email_address", user.Email},
		Field{"merchant_id", p.cfg.MerchantID},
	)

	signature := Sign(ParamString(fields), p.cfg.Passphrase)
	fields = append(fields, Field{signatureKey, signature})

	raw, err := FieldsToJSON(fields)
	if err != nil {
		return types.WebhookDelivery{}, err
	}

	body := make(map[string]any, len(fields))
	for _, f := range fields {
		body[f.Key] = f.Value
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Forwarded-For", "127.0.0.1")

	return types.WebhookDelivery{
		Body:    body,
		RawBody: []byte(raw),
		Headers: headers,
	}, nil
}

// randomNumericID generates a gateway-style numeric payment id.
func randomNumericID() string {
	const digits = "0123456789"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("payfast: reading random bytes: " + err.Error())
	}
	id := make([]byte, len(buf)+1)
	id[0] = '1' + buf[0]%9
	for i, b := range buf {
		id[i+1] = digits[int(b)%len(digits)]
	}
	return string(id)
}
