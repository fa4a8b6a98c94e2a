// Package signature authenticates webhook bodies signed with a shared secret.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Verifier checks HMAC-SHA256 signatures over raw request bodies.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for secret. An empty secret is accepted and
// verified like any other key.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: append([]byte(nil), secret...)}
}

// Sign returns the lowercase hex HMAC-SHA256 of body.
func (v *Verifier) Sign(body []byte) string {
	return Sign(body, v.secret)
}

// Verify reports whether signature is the hex HMAC of body. Malformed input
// yields false.
func (v *Verifier) Verify(body []byte, signature string) bool {
	return Verify(body, signature, v.secret)
}

func Sign(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in time that depends only on the expected length.
func Verify(body []byte, signature string, secret []byte) bool {
	expected := []byte(Sign(body, secret))
	return subtle.ConstantTimeCompare(expected, []byte(signature)) == 1
}
