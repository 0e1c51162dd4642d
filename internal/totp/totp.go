// Package totp implements RFC 6238 time-based one-time passwords on top of
// github.com/pquerna/otp: enrollment keys with their otpauth URL, code
// generation, and verification with a clock-skew window.
package totp

import (
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const secretBytes = 20

var (
	// ErrInvalidSecret is returned when the stored secret is not base32.
	ErrInvalidSecret = errors.New("invalid totp secret")

	errMissingIssuer = errors.New("totp issuer required")
)

// Config holds the TOTP parameters shared by enrollment and verification.
type Config struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

// Manager generates and verifies TOTP codes.
type Manager struct {
	config    Config
	algorithm otp.Algorithm
}

// New fills zero values with the RFC defaults (6 digits, 30s, SHA1, skew 1).
func New(cfg Config) (*Manager, error) {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.Digits < 6 || cfg.Digits > 8 {
		return nil, errors.New("totp digits must be between 6 and 8")
	}
	if cfg.Period <= 0 || cfg.Skew < 0 || cfg.Skew > 5 {
		return nil, errors.New("invalid totp period or skew")
	}
	alg, err := parseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Manager{config: cfg, algorithm: alg}, nil
}

// Generate creates a fresh enrollment key for account. The key carries the
// base32 secret (Secret) and the otpauth:// URL scanned by authenticator apps
// (URL).
func (m *Manager) Generate(account string) (*otp.Key, error) {
	if strings.TrimSpace(m.config.Issuer) == "" {
		return nil, errMissingIssuer
	}
	return totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      uint(m.config.Period),
		SecretSize:  secretBytes,
		Digits:      otp.Digits(m.config.Digits),
		Algorithm:   m.algorithm,
	})
}

// Verify checks code against the base32 secret at now, accepting the
// configured number of adjacent time steps on either side. Malformed codes
// are a mismatch, not an error.
func (m *Manager) Verify(secret, code string, now time.Time) (bool, error) {
	if strings.TrimSpace(secret) == "" {
		return false, ErrInvalidSecret
	}
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits || !isNumeric(code) {
		return false, nil
	}
	ok, err := totp.ValidateCustom(code, secret, now.UTC(), m.opts())
	if err != nil {
		if errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
			return false, ErrInvalidSecret
		}
		return false, err
	}
	return ok, nil
}

// Code returns the code for the given time. Used by tests and tooling.
func (m *Manager) Code(secret string, now time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, now.UTC(), m.opts())
	if errors.Is(err, otp.ErrValidateSecretInvalidBase32) {
		return "", ErrInvalidSecret
	}
	return code, err
}

func (m *Manager) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(m.config.Period),
		Skew:      uint(m.config.Skew),
		Digits:    otp.Digits(m.config.Digits),
		Algorithm: m.algorithm,
	}
}

func parseAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	default:
		return 0, errors.New("unsupported totp algorithm")
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
