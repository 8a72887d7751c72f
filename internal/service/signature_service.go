package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HMACSignatureService implements ports.SignatureService using HMAC-SHA256.
// Internal callers (billing, admin tooling) sign every request with the
// shared secret from config.InternalConfig.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// RequestSignature holds the header values of one signed internal request.
type RequestSignature struct {
	Timestamp int64
	Nonce     string
	Signature string
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	return hex.EncodeToString(s.mac(secretKey, payload))
}

// SignRequest signs a request the way HMACAuth will rebuild it.
func (s *HMACSignatureService) SignRequest(secretKey, method, path, body string, timestamp int64, nonce string) RequestSignature {
	return RequestSignature{
		Timestamp: timestamp,
		Nonce:     nonce,
		Signature: s.Sign(secretKey, s.BuildCanonicalString(method, path, timestamp, nonce, body)),
	}
}

// Verify reports whether signature is the hex HMAC of payload. Hex case is
// ignored. An empty secret never verifies.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	if secretKey == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(s.mac(secretKey, payload), got)
}

// BuildCanonicalString constructs the signed payload:
// METHOD|PATH|TIMESTAMP|NONCE|BODY
func (s *HMACSignatureService) BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", method, path, timestamp, nonce, body)
}

func (s *HMACSignatureService) mac(secretKey, payload string) []byte {
	m := hmac.New(sha256.New, []byte(secretKey))
	m.Write([]byte(payload))
	return m.Sum(nil)
}
