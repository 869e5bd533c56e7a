package actions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHMAC signs a webhook payload with the rule's stored secret.
func ComputeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature against the computed HMAC in constant
// time.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := ComputeHMAC(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
