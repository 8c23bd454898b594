package gatewaywebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	pkgerrors "github.com/dmfellows/bidstreet-backend/pkg/errors"
)

// VerifySignature checks the hex HMAC-SHA256 signature the gateway
// computes over the raw request body. The comparison is constant time.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook signing secret not configured")
	}
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook signature missing")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "webhook signature mismatch")
	}
	return nil
}

// Sign computes the signature the gateway would attach to a payload.
// Exposed for tests and local tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
