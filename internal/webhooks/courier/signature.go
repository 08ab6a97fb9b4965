package courierwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader is the header the courier signs webhook bodies under.
const SignatureHeader = "X-Uber-Signature"

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw body against
// the webhook secret using a constant-time compare.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
