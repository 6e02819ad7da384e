// Package payfast implements the PayFast payment provider: once-off checkout
// form construction, the parameter-string signature codec, and the webhook
// notification verifier with its optional origin and server-confirmation
// gates.
//
// PayFast signs payloads over a canonical parameter string: the payload's
// fields in their declared order, percent-encoded with form-style space
// handling, joined as key=value pairs. The declared order is the contract:
// this package builds and verifies the string from an ordered field list,
// never from a Go map, so both sides of the signature use the same
// deterministic rule.
package payfast

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"paybridge/internal/types"
)

// signatureKey is the payload field carrying the digest. It is always
// excluded from the canonical string.
const signatureKey = "signature"

// Field is one payload entry. Canonicalization operates on []Field so the
// producer's declared order survives into the signable string.
type Field struct {
	Key   string
	Value string
}

// upperhex is the digit set for percent-encoding.
const upperhex = "0123456789ABCDEF"

// shouldEscape reports whether byte c needs percent-encoding. The unreserved
// set matches JavaScript's encodeURIComponent (RFC 3986 unreserved plus
// !*'()), which is what PayFast's reference implementations use.
func shouldEscape(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return false
	}
	return true
}

// encodeValue percent-encodes a trimmed field value, then applies the
// form-encoding convention of rendering spaces as '+'.
func encodeValue(v string) string {
	v = strings.TrimSpace(v)
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == ' ':
			b.WriteByte('+')
		case shouldEscape(c):
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ParamString canonicalizes the fields into the signable parameter string:
// key=encodedValue pairs joined with '&', no trailing separator. The
// signature field is excluded. Absent fields must already have been omitted
// by the producer -- an absent field and an empty-string field canonicalize
// differently, and conflating them is the classic cause of signature
// mismatches.
func ParamString(fields []Field) string {
	var b strings.Builder
	first := true
	for _, f := range fields {
		if f.Key == signatureKey {
			continue
		}
		if !first {
			b.WriteByte('&')
		}
		first = false
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(encodeValue(f.Value))
	}
	return b.String()
}

// Sign computes the MD5 digest of the parameter string, rendered as
// lowercase hex. When a passphrase is configured it is appended as an extra
// percent-encoded parameter before hashing.
func Sign(paramString string, passphrase types.SecretString) string {
	if !passphrase.IsZero() {
		paramString += "&passphrase=" + encodeValue(passphrase.Unmask())
	}
	sum := md5.Sum([]byte(paramString))
	return hex.EncodeToString(sum[:])
}

// SignedParamString appends the signature to the canonical string. This is
// the form posted to PayFast when initiating a payment; inbound verification
// never uses it.
func SignedParamString(paramString, signature string) string {
	return paramString + "&" + signatureKey + "=" + signature
}

// ParseFields parses a raw notification body into its ordered field list.
// PayFast delivers notifications as flat JSON objects or form-encoded
// bodies; both are supported, and in both cases the wire order of the keys
// is preserved, because wire order is the canonical signing order.
//
// Scalar non-string JSON values are rendered with their literal wire text.
// A nested object or array is a contract violation and fails the parse.
func ParseFields(raw []byte) ([]Field, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if trimmed[0] == '{' {
		return parseJSONFields(trimmed)
	}
	return parseFormFields(string(trimmed))
}

// parseJSONFields walks the top-level object with a token decoder so key
// order is retained. encoding/json maps are unordered and unusable here.
func parseJSONFields(raw []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("payload is not a JSON object")
	}

	var fields []Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading field name: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v for field name", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading value for %q: %w", key, err)
		}

		switch v := valTok.(type) {
		case string:
			fields = append(fields, Field{Key: key, Value: v})
		case json.Number:
			fields = append(fields, Field{Key: key, Value: v.String()})
		case bool:
			fields = append(fields, Field{Key: key, Value: fmt.Sprintf("%t", v)})
		case nil:
			// null is an absent field: excluded from canonicalization.
		case json.Delim:
			return nil, fmt.Errorf("field %q is not a flat value", key)
		default:
			return nil, fmt.Errorf("field %q has unsupported type %T", key, valTok)
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading end of payload: %w", err)
	}

	return fields, nil
}

// parseFormFields parses an application/x-www-form-urlencoded body in wire
// order. url.ParseQuery is not used because it returns an unordered map.
func parseFormFields(body string) ([]Field, error) {
	var fields []Field
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := unescapeForm(key)
		if err != nil {
			return nil, fmt.Errorf("decoding field name %q: %w", key, err)
		}
		v, err := unescapeForm(value)
		if err != nil {
			return nil, fmt.Errorf("decoding value for %q: %w", k, err)
		}
		fields = append(fields, Field{Key: k, Value: v})
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields in form body")
	}
	return fields, nil
}

// unescapeForm decodes percent-escapes and '+' in a form-encoded component.
func unescapeForm(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 >= len(s) {
				return "", fmt.Errorf("truncated percent-escape")
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("invalid percent-escape %q", s[i:i+3])
			}
			b.WriteByte(hi<<4 | lo)
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// FieldValue returns the value of the first field with the given key, and
// whether it was present.
func FieldValue(fields []Field, key string) (string, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// FieldsToJSON serializes the fields as a JSON object in field order. Used
// to populate PaymentEvent.Data with the verified payload.
func FieldsToJSON(fields []Field) (string, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return "", err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return "", err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return b.String(), nil
}
