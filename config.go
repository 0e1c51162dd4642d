package deskauth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/deskauth/internal/vault"
	"github.com/MrEthical07/deskauth/password"
	"github.com/MrEthical07/deskauth/permission"
)

// Config is the engine policy. Use DefaultConfig and override fields; the
// Builder clones it so later caller mutation has no effect.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Tokens   TokenConfig
	Password PasswordConfig
	Login    LoginConfig
	TOTP     TOTPConfig
	Roles    RoleConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig controls access token signing.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

// RefreshConfig controls refresh token issuance.
type RefreshConfig struct {
	TTL         time.Duration
	SecretBytes int
}

// TokenConfig controls single-use token issuance.
type TokenConfig struct {
	VerificationTTL time.Duration
	ResetTTL        time.Duration
	SecretBytes     int
}

// PasswordConfig holds Argon2id cost parameters and the strength policy.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

// LoginConfig controls the brute-force gate and login policy.
//
// RecordDisabledAttempts writes a failed attempt row for logins against
// inactive accounts. Off by default: no credential check runs for them.
type LoginConfig struct {
	FailureWindow          time.Duration
	CaptchaThreshold       int
	RequireVerifiedEmail   bool
	HistoryLimit           int
	RecordDisabledAttempts bool
}

// TOTPConfig controls second-factor enrollment.
type TOTPConfig struct {
	Issuer            string
	Period            int
	Digits            int
	Skew              int
	Algorithm         string
	RecoveryCodeCount int
	RecoveryCodeBytes int
	// SealKey, when set (32 bytes), encrypts stored TOTP secrets with AES-256-GCM.
	SealKey []byte
}

// RoleConfig names the roles the engine and guards depend on.
type RoleConfig struct {
	Default    string
	Admin      string
	Privileged []string
}

// SecurityConfig holds behavior switches.
//
// RevokeSessionsOnReset revokes all refresh tokens after a successful
// password reset. Off by default, matching the historical behavior where
// only ChangePassword revokes sessions.
type SecurityConfig struct {
	RevokeSessionsOnReset bool
}

// AuditConfig controls audit event dispatching.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. JWT keys must still be supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Refresh: RefreshConfig{
			TTL:         30 * 24 * time.Hour,
			SecretBytes: 48,
		},
		Tokens: TokenConfig{
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        30 * time.Minute,
			SecretBytes:     32,
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			MinLength:      password.DefaultMinLength,
			UpgradeOnLogin: true,
		},
		Login: LoginConfig{
			FailureWindow:    15 * time.Minute,
			CaptchaThreshold: 5,
			HistoryLimit:     20,
		},
		TOTP: TOTPConfig{
			Issuer:            "Support Desk",
			Period:            30,
			Digits:            6,
			Skew:              1,
			Algorithm:         "SHA1",
			RecoveryCodeCount: 8,
			RecoveryCodeBytes: 5,
		},
		Roles: RoleConfig{
			Default:    permission.RoleCustomer,
			Admin:      permission.RoleAdmin,
			Privileged: []string{permission.RoleAdmin, permission.RoleManager, permission.RoleTechnician},
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects inconsistent configuration.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.SecretBytes < 32 {
		return errors.New("Refresh SecretBytes must be >= 32")
	}
	if c.Tokens.VerificationTTL <= 0 || c.Tokens.ResetTTL <= 0 {
		return errors.New("Tokens TTLs must be > 0")
	}
	if c.Tokens.SecretBytes < 16 {
		return errors.New("Tokens SecretBytes must be >= 16")
	}

	if err := c.passwordConfig().Validate(); err != nil {
		return err
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	if c.Login.FailureWindow <= 0 {
		return errors.New("Login FailureWindow must be > 0")
	}
	if c.Login.CaptchaThreshold < 1 {
		return errors.New("Login CaptchaThreshold must be >= 1")
	}
	if c.Login.HistoryLimit < 1 {
		return errors.New("Login HistoryLimit must be >= 1")
	}

	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}
	if c.TOTP.RecoveryCodeCount < 1 || c.TOTP.RecoveryCodeBytes < 4 {
		return errors.New("TOTP recovery code count must be >= 1 and bytes >= 4")
	}
	if len(c.TOTP.SealKey) != 0 && len(c.TOTP.SealKey) != vault.KeySize {
		return errors.New("TOTP SealKey must be 32 bytes")
	}

	if c.Roles.Default == "" {
		return errors.New("Roles Default must be set")
	}
	if err := c.rolePolicy().Validate(); err != nil {
		return err
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}

func (c *Config) passwordConfig() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

func (c *Config) rolePolicy() permission.Policy {
	return permission.Policy{
		AdminRole:  c.Roles.Admin,
		Privileged: permission.NewRoleSet(c.Roles.Privileged...),
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.TOTP.SealKey = cloneBytes(cfg.TOTP.SealKey)
	out.Roles.Privileged = append([]string(nil), cfg.Roles.Privileged...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
