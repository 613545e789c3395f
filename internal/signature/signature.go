// Package signature computes and verifies the keyed signature carried on
// every outbound webhook call. The scheme is HMAC-SHA256 over the exact
// request body bytes, rendered as "sha256=<hex>" so the algorithm can be
// rotated later without breaking existing verifiers.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const prefix = "sha256="

// Sign computes the signature for payload using the subscription's shared secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
// Subscribers use the same logic on their side; this service only calls
// it from tests and sample verifiers.
func Verify(secret string, payload []byte, sig string) bool {
	if !strings.HasPrefix(sig, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(sig, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}
