package pay

import (
	"crypto/rand"
	"math/big"
)

// idAlphabet matches the character set providers use for short identifiers.
const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomIDLength is the length of the random portion of generated ids.
const randomIDLength = 11

// NewPaymentID generates a locally-assigned payment id with the "pf_"
// prefix. Used by providers (PayFast) that do not assign intent identifiers
// themselves; the id becomes the m_payment_id correlation key.
func NewPaymentID() string {
	return "pf_" + randomID(randomIDLength)
}

// NewCustomerID generates a locally-assigned customer id with the "cus_"
// prefix, for providers without server-side customer records.
func NewCustomerID() string {
	return "cus_" + randomID(randomIDLength)
}

// randomID returns n characters drawn uniformly from idAlphabet using
// crypto/rand. Correlation ids appear in signed payloads and redirect URLs,
// so they must not be guessable.
func randomID(n int) string {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure means the platform RNG is broken;
			// nothing sensible can continue.
			panic("pay: crypto/rand unavailable: " + err.Error())
		}
		b[i] = idAlphabet[v.Int64()]
	}
	return string(b)
}
