package signature_test

import (
	"strings"
	"testing"

	"github.com/stayhq/stayhq/internal/signature"
)

func TestSign_format(t *testing.T) {
	sig := signature.Sign("s3cr3t", []byte(`{"booking_id":"B1"}`))
	if !strings.HasPrefix(sig, "sha256=") {
		t.Errorf("signature missing algorithm tag: %q", sig)
	}
	if len(sig) != len("sha256=")+64 {
		t.Errorf("unexpected signature length: %d", len(sig))
	}
}

func TestSign_deterministic(t *testing.T) {
	payload := []byte(`{"booking_id":"B1"}`)
	if signature.Sign("s3cr3t", payload) != signature.Sign("s3cr3t", payload) {
		t.Error("same secret and payload produced different signatures")
	}
}

func TestVerify_roundTrip(t *testing.T) {
	payload := []byte(`{"event_type":"booking.created"}`)
	sig := signature.Sign("s3cr3t", payload)

	if !signature.Verify("s3cr3t", payload, sig) {
		t.Error("Verify() rejected a valid signature")
	}
}

func TestVerify_rejects(t *testing.T) {
	payload := []byte(`{"event_type":"booking.created"}`)
	sig := signature.Sign("s3cr3t", payload)

	tests := []struct {
		name    string
		secret  string
		payload []byte
		sig     string
	}{
		{"wrong secret", "other", payload, sig},
		{"mutated payload", "s3cr3t", []byte(`{"event_type":"booking.cancelled"}`), sig},
		{"missing tag", "s3cr3t", payload, strings.TrimPrefix(sig, "sha256=")},
		{"garbage hex", "s3cr3t", payload, "sha256=zzzz"},
		{"empty", "s3cr3t", payload, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if signature.Verify(tt.secret, tt.payload, tt.sig) {
				t.Error("Verify() accepted an invalid signature")
			}
		})
	}
}
