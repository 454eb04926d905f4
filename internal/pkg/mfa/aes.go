package mfa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Ciphertext layout:
//
//	[0..1]  uint16 version
//	[2..13] 12-byte nonce
//	[14..]  gcm.Seal output (ciphertext + tag)
const aesGCMVersion uint16 = 1

const (
	gcmNonceSize = 12
	aesKeyLen    = 32
	headerLen    = 2 + gcmNonceSize
)

var (
	// ErrEncryptorNotConfigured indicates a missing key provider.
	ErrEncryptorNotConfigured = errors.New("mfacrypto: encryptor not configured")
	// ErrPlaintextEmpty indicates an empty plaintext input.
	ErrPlaintextEmpty = errors.New("mfacrypto: plaintext is empty")
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("mfacrypto: invalid key length")
	// ErrCiphertextTooShort indicates a truncated ciphertext.
	ErrCiphertextTooShort = errors.New("mfacrypto: ciphertext too short")
	// ErrUnsupportedCiphertextVersion indicates an unknown layout version.
	ErrUnsupportedCiphertextVersion = errors.New("mfacrypto: unsupported ciphertext version")
	// ErrDecryptFailed indicates authentication failure on open.
	ErrDecryptFailed = errors.New("mfacrypto: decrypt failed")
	// ErrMissingKey indicates empty key material.
	ErrMissingKey = errors.New("mfacrypto: missing key material")
)

// AESGCMEncryptor implements Encryptor using AES-256-GCM.
type AESGCMEncryptor struct {
	keys  KeyProvider
	nonce io.Reader
}

// NewAESGCMEncryptor constructs an AES-GCM encryptor.
func NewAESGCMEncryptor(keys KeyProvider) *AESGCMEncryptor {
	return &AESGCMEncryptor{keys: keys, nonce: rand.Reader}
}

// Encrypt seals plaintext and binds it to scope.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrPlaintextEmpty
	}

	gcm, err := e.aead(scope)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerLen, headerLen+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out[0:2], aesGCMVersion)
	if _, err := io.ReadFull(e.nonce, out[2:headerLen]); err != nil {
		return nil, fmt.Errorf("mfacrypto: nonce generation failed: %w", err)
	}

	return gcm.Seal(out, out[2:headerLen], plaintext, scopeAAD(scope)), nil
}

// Decrypt opens ciphertext produced by Encrypt for the same scope.
func (e *AESGCMEncryptor) Decrypt(ciphertext []byte, scope Scope) ([]byte, error) {
	if len(ciphertext) < headerLen+1 {
		return nil, ErrCiphertextTooShort
	}

	if v := binary.BigEndian.Uint16(ciphertext[0:2]); v != aesGCMVersion {
		return nil, fmt.Errorf("mfacrypto: version %d: %w", v, ErrUnsupportedCiphertextVersion)
	}

	gcm, err := e.aead(scope)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, ciphertext[2:headerLen], ciphertext[headerLen:], scopeAAD(scope))
	if err != nil {
		// wrong scope, wrong key and tampering all look the same
		return nil, ErrDecryptFailed
	}
	return plain, nil
}

func (e *AESGCMEncryptor) aead(scope Scope) (cipher.AEAD, error) {
	if e == nil || e.keys == nil {
		return nil, ErrEncryptorNotConfigured
	}

	key, err := e.keys.Key(scope)
	if err != nil {
		return nil, fmt.Errorf("mfacrypto: key provider error: %w", err)
	}
	if len(key) != aesKeyLen {
		return nil, fmt.Errorf("mfacrypto: key length %d (want %d): %w", len(key), aesKeyLen, ErrInvalidKeyLength)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("mfacrypto: aes init failed: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, gcmNonceSize)
}

// scopeAAD is fixed length so separators can never be ambiguous.
func scopeAAD(s Scope) []byte {
	sum := sha256.Sum256([]byte(s.canonical()))
	return sum[:]
}
