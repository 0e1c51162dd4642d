package deskauth

import "time"

// SecurityReport summarizes the security-relevant configuration of an engine
// so operators can log or assert it at startup.
type SecurityReport struct {
	SigningAlgorithm       string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	RefreshRotationEnabled bool
	Argon2                 PasswordConfigReport
	MinPasswordLength      int
	VerifiedEmailRequired  bool
	CaptchaThreshold       int
	CaptchaWindow          time.Duration
	CaptchaVerifierSet     bool
	TOTPSecretsSealed      bool
	RecoveryCodeCount      int
	SessionsRevokedOnReset bool
	AuditEnabled           bool
	AdminRole              string
}

// PasswordConfigReport carries the Argon2id cost parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport returns the effective security posture. Refresh tokens are
// never rotated, so RefreshRotationEnabled is always false.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	c := e.config
	return SecurityReport{
		SigningAlgorithm: c.JWT.SigningMethod,
		AccessTTL:        c.JWT.AccessTTL,
		RefreshTTL:       c.Refresh.TTL,
		Argon2: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		MinPasswordLength:      c.Password.MinLength,
		VerifiedEmailRequired:  c.Login.RequireVerifiedEmail,
		CaptchaThreshold:       c.Login.CaptchaThreshold,
		CaptchaWindow:          c.Login.FailureWindow,
		CaptchaVerifierSet:     e.captcha != nil,
		TOTPSecretsSealed:      len(c.TOTP.SealKey) > 0,
		RecoveryCodeCount:      c.TOTP.RecoveryCodeCount,
		SessionsRevokedOnReset: c.Security.RevokeSessionsOnReset,
		AuditEnabled:           c.Audit.Enabled,
		AdminRole:              c.Roles.Admin,
	}
}
