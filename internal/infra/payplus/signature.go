package payplus

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Sign returns base64(HMAC-SHA256(secret, body)), the value PayPlus sends in
// the "hash" header of a webhook.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func ValidateWebhook(body []byte, hash, secret string) bool {
	if secret == "" || hash == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(hash))
}
