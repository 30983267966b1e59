package billing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestComputeSignature(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		secret string
	}{
		{
			name:   "basic payload",
			body:   []byte(`{"id":"evt_1","type":"checkout.completed"}`),
			secret: "whsec_test",
		},
		{
			name:   "empty payload",
			body:   []byte(`{}`),
			secret: "secret",
		},
		{
			name:   "empty secret",
			body:   []byte(`{"test":true}`),
			secret: "",
		},
		{
			name:   "unicode payload",
			body:   []byte(`{"name":"café","price":"€10"}`),
			secret: "unicode-key-日本語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := ComputeSignature(tt.body, 1700000000, tt.secret)

			decoded, err := hex.DecodeString(sig)
			if err != nil {
				t.Fatalf("signature is not valid hex: %v", err)
			}

			// HMAC-SHA256 always produces 32 bytes (64 hex chars)
			if len(decoded) != 32 {
				t.Fatalf("expected 32 bytes, got %d", len(decoded))
			}
		})
	}
}

func TestComputeSignature_TimestampBound(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)

	sig1 := ComputeSignature(body, 1700000000, "secret")
	sig2 := ComputeSignature(body, 1700000001, "secret")

	if sig1 == sig2 {
		t.Error("different timestamps should produce different signatures")
	}
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"subscription.updated"}`)
	secret := "whsec_test"
	now := time.Unix(1700000000, 0)

	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), ComputeSignature(body, now.Unix(), secret))

	if err := verifySignatureAt(body, header, secret, now); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1700000000, 0)

	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), ComputeSignature(body, now.Unix(), "secret-a"))

	err := verifySignatureAt(body, header, "secret-b", now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	secret := "whsec_test"
	now := time.Unix(1700000000, 0)

	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), ComputeSignature([]byte(`{"amount":10}`), now.Unix(), secret))

	err := verifySignatureAt([]byte(`{"amount":9999}`), header, secret, now)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignature_MissingHeader(t *testing.T) {
	err := VerifySignature([]byte(`{}`), "", "secret")
	if !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestVerifySignature_StaleTimestamp(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	now := time.Unix(1700000000, 0)

	signed := now.Add(-6 * time.Minute).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", signed, ComputeSignature(body, signed, secret))

	err := verifySignatureAt(body, header, secret, now)
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestVerifySignature_FutureWithinTolerance(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	now := time.Unix(1700000000, 0)

	// Small clock skew ahead of us is fine
	signed := now.Add(2 * time.Minute).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", signed, ComputeSignature(body, signed, secret))

	if err := verifySignatureAt(body, header, secret, now); err != nil {
		t.Fatalf("expected skewed-but-in-tolerance signature to verify, got %v", err)
	}
}

func TestVerifySignature_GarbageHeader(t *testing.T) {
	tests := []string{
		"t=,v1=",
		"nonsense",
		"t=abc,v1=deadbeef",
		"v1=deadbeef",
		"t=1700000000",
	}

	for _, header := range tests {
		if err := verifySignatureAt([]byte(`{}`), header, "secret", time.Unix(1700000000, 0)); err == nil {
			t.Errorf("header %q should not verify", header)
		}
	}
}
