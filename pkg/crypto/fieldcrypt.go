// Package crypto encrypts individual column values with AES-256-GCM.
//
// Stored values look like "enc:v1:<base64(nonce+ciphertext)>". Values without
// the prefix are treated as plaintext on read.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const prefix = "enc:v1:"

// ErrNotConfigured is returned by a nil *FieldEncryptor.
var ErrNotConfigured = errors.New("crypto: field encryption not configured")

// FieldEncryptor is safe for concurrent use. The purpose passed at derivation
// is bound as additional data, so a value sealed for one column will not open
// under an encryptor derived for another.
type FieldEncryptor struct {
	gcm     cipher.AEAD
	purpose []byte
}

// DeriveFieldEncryptor derives an AES-256 key from masterSecret with HKDF-SHA256.
func DeriveFieldEncryptor(masterSecret []byte, purpose string) (*FieldEncryptor, error) {
	if len(masterSecret) == 0 {
		return nil, errors.New("crypto: master secret is empty")
	}
	hkdfReader := hkdf.New(sha256.New, masterSecret, []byte("herald-field-encryption"), []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("crypto: HKDF derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	return &FieldEncryptor{gcm: gcm, purpose: []byte(purpose)}, nil
}

// Encrypt seals plaintext and returns the prefixed storage form.
func (fe *FieldEncryptor) Encrypt(plaintext string) (string, error) {
	if fe == nil {
		return "", ErrNotConfigured
	}
	nonce := make([]byte, fe.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}
	sealed := fe.gcm.Seal(nonce, nonce, []byte(plaintext), fe.purpose)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Unprefixed values are returned unchanged.
func (fe *FieldEncryptor) Decrypt(stored string) (string, error) {
	if !IsEncrypted(stored) {
		return stored, nil
	}
	if fe == nil {
		return "", ErrNotConfigured
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", fmt.Errorf("crypto: invalid base64: %w", err)
	}
	nonceSize := fe.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("crypto: ciphertext too short")
	}
	plaintext, err := fe.gcm.Open(nil, data[:nonceSize], data[nonceSize:], fe.purpose)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// IsEncrypted returns true if the stored value has the encryption prefix.
func IsEncrypted(stored string) bool {
	return strings.HasPrefix(stored, prefix)
}
