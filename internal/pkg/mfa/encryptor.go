package mfa

import (
	"encoding/base64"
	"fmt"
)

// Encryptor seals and opens scoped secrets.
type Encryptor interface {
	Encrypt(plaintext []byte, scope Scope) (ciphertext []byte, err error)
	Decrypt(ciphertext []byte, scope Scope) (plaintext []byte, err error)
}

// KeyProvider returns the raw AES-256 key for a scope.
type KeyProvider interface {
	Key(scope Scope) ([]byte, error)
}

// SealString encrypts s and returns it base64 encoded for text columns.
func SealString(enc Encryptor, s string, scope Scope) (string, error) {
	ct, err := enc.Encrypt([]byte(s), scope)
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(ct), nil
}

// OpenString reverses SealString.
func OpenString(enc Encryptor, sealed string, scope Scope) (string, error) {
	ct, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("mfacrypto: decode sealed value: %w", ErrDecryptFailed)
	}

	pt, err := enc.Decrypt(ct, scope)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
