package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 implements Hash with hex encoded HMAC-SHA256.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 creates a new hasher with a secret.
func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{secret: []byte(secret)}
}

// Hash returns the hex encoded digest of str.
func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	return s.gen(str), nil
}

// Verify reports whether hashed is the digest of str.
func (s *HMACSHA256) Verify(hashed, str string) bool {
	return hmac.Equal([]byte(hashed), s.gen(str))
}

func (s *HMACSHA256) gen(str string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(str))
	sum := h.Sum(nil)
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out
}
