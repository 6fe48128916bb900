package payment

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

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" where the MAC is
// HMAC-SHA256 over "<unix>.<raw body>" with the shared webhook secret.
const SignatureHeader = "X-Payment-Signature"

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Sign produces a signature header value for a payload. Used by the
// processor side; exported here mainly so tests can build valid headers.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, computeMAC(payload, secret, ts))
}

// VerifySignature checks the webhook signature and rejects stale timestamps.
// Verification fails closed: any parse error is ErrInvalidSignature.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	ts, sig, err := parseHeader(header)
	if err != nil {
		return err
	}

	expected := computeMAC(payload, secret, ts)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrInvalidSignature
	}

	age := time.Since(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}
	return nil
}

func parseHeader(header string) (ts int64, sig string, err error) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", ErrInvalidSignature
			}
		case "v1":
			sig = v
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", ErrInvalidSignature
	}
	return ts, sig, nil
}

func computeMAC(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
