package mfa

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// StaticKeyProvider returns the same key for every scope.
type StaticKeyProvider struct {
	KeyBytes []byte
}

// Key returns a copy of the static key.
func (p StaticKeyProvider) Key(_ Scope) ([]byte, error) {
	if len(p.KeyBytes) == 0 {
		return nil, ErrMissingKey
	}
	k := make([]byte, len(p.KeyBytes))
	copy(k, p.KeyBytes)
	return k, nil
}

// HKDFKeyProvider derives a distinct AES-256 key per purpose from one master
// secret with HKDF-SHA256.
type HKDFKeyProvider struct {
	master []byte
	salt   []byte
}

// NewHKDFKeyProvider returns a provider over master. salt may be nil.
func NewHKDFKeyProvider(master, salt []byte) *HKDFKeyProvider {
	return &HKDFKeyProvider{master: master, salt: salt}
}

// Key derives the key for scope.Purpose.
func (p *HKDFKeyProvider) Key(scope Scope) ([]byte, error) {
	if p == nil || len(p.master) == 0 {
		return nil, ErrMissingKey
	}

	r := hkdf.New(sha256.New, p.master, p.salt, []byte("idgate/mfa/"+string(scope.Purpose)))
	key := make([]byte, aesKeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("mfacrypto: hkdf: %w", err)
	}
	return key, nil
}
