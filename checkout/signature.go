package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and checks the checkout callback signature, a hex encoded
// HMAC-SHA256 over "orderId|paymentId" keyed with the provider secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time.
func (s *Signer) Verify(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(s.Sign(orderID, paymentID)), []byte(signature))
}
