// Package vault seals TOTP shared secrets at rest with AES-256-GCM.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the required sealing key length (AES-256).
const KeySize = 32

const sealedPrefix = "v1:"

var (
	// ErrKeySize is returned when the sealing key is not 32 bytes.
	ErrKeySize = errors.New("vault key must be 32 bytes")
	// ErrOpen is returned when sealed data cannot be authenticated.
	ErrOpen = errors.New("decryption failed (wrong key or tampered data)")
)

// Sealer encrypts and decrypts short secrets. A Sealer with no key passes
// values through unchanged, so deployments without a key keep working.
type Sealer struct {
	aead cipher.AEAD
}

// New returns a Sealer for key. A nil or empty key yields a pass-through Sealer.
func New(key []byte) (*Sealer, error) {
	if len(key) == 0 {
		return &Sealer{}, nil
	}
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// ParseHexKey decodes a hex-encoded sealing key. Empty input returns nil.
func ParseHexKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode vault key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	return key, nil
}

// Enabled reports whether values are actually encrypted.
func (s *Sealer) Enabled() bool {
	return s != nil && s.aead != nil
}

// Seal encrypts plaintext and prepends the nonce, returning a prefixed hex string.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if !s.Enabled() {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + hex.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as-is,
// which lets a key be introduced after secrets were already stored.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if !s.Enabled() {
		return "", ErrOpen
	}
	ciphertext, err := hex.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrOpen
	}
	nonceSize := s.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrOpen
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", ErrOpen
	}
	return string(plaintext), nil
}
