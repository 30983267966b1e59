package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header the vendor signs each delivery with.
// Format: "t=<unix seconds>,v1=<hex hmac-sha256 of "<t>.<body>">".
const SignatureHeader = "Billing-Signature"

// Tolerance bounds how old a signed timestamp may be, to blunt replay of
// captured deliveries.
const Tolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrInvalidSignature = errors.New("signature verification failed")
	ErrStaleTimestamp   = errors.New("signature timestamp outside tolerance")
)

// VerifySignature authenticates a raw webhook body against its signature
// header. It returns nil only for a well-formed, in-tolerance, matching
// signature; no event may be recorded when it fails.
func VerifySignature(body []byte, header, secret string) error {
	return verifySignatureAt(body, header, secret, time.Now())
}

func verifySignatureAt(body []byte, header, secret string, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = n
		case "v1":
			sig = v
		}
	}

	if ts == 0 || sig == "" {
		return ErrInvalidSignature
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > Tolerance || age < -Tolerance {
		return ErrStaleTimestamp
	}

	expected := ComputeSignature(body, ts, secret)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrInvalidSignature
	}

	return nil
}

// ComputeSignature generates the hex HMAC-SHA256 over "<ts>.<body>". Exported
// for the mock vendor and for tests.
func ComputeSignature(body []byte, ts int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureFor builds a complete header value for a body signed now.
func SignatureFor(body []byte, secret string) string {
	ts := time.Now().Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, ComputeSignature(body, ts, secret))
}
