package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
)

const SignatureHeader = "X-Razorpay-Signature"

var errNoWebhookSecret = errors.New("webhook secret is not configured")

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the raw request bytes in constant time.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return errNoWebhookSecret
	}
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}
