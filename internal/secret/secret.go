package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	// RefreshTokenBytes is the entropy of a raw refresh token secret.
	RefreshTokenBytes = 48
	// SingleUseTokenBytes is the entropy of an email-verification or reset secret.
	SingleUseTokenBytes = 32
	// RecoveryCodeBytes is the entropy of one TOTP recovery code.
	RecoveryCodeBytes = 5

	maxTokenBytes = 1024
)

var errInvalidLength = errors.New("invalid random token length")

// RandomToken returns n cryptographically random bytes encoded as lowercase hex.
func RandomToken(n int) (string, error) {
	if n <= 0 || n > maxTokenBytes {
		return "", errInvalidLength
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Hash returns the hex SHA-256 digest of raw. Inputs are high-entropy random
// values, so an unsalted digest is sufficient for lookup by hash.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Canonical trims whitespace and lowercases a raw hex token as typed by a user
// (recovery codes are often re-typed with spaces or in upper case).
func Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, " ", "")
	raw = strings.ReplaceAll(raw, "-", "")
	return strings.ToLower(raw)
}
