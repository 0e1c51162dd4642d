package deskauth

import (
	"time"

	"github.com/MrEthical07/deskauth/jwt"
)

// IdentityClaims is the signed claim set issued after authentication.
type IdentityClaims = jwt.Identity

// User is the identity record. Emails compare case-insensitively.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Active          bool
	EmailVerifiedAt *time.Time
	Roles           []string
	FirstName       string
	LastName        string
	Phone           string
	CreatedAt       time.Time
}

// EmailVerified reports whether the user confirmed their email address.
func (u User) EmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// CreateUserInput carries a new user row. ID is assigned by the engine.
type CreateUserInput struct {
	ID               string
	Email            string
	PasswordHash     string
	Active           bool
	EmailVerifiedAt  *time.Time
	Roles            []string
	FirstName        string
	LastName         string
	Phone            string
	AcceptedPolicyAt time.Time
	CreatedAt        time.Time
}

// RefreshToken is a long-lived credential. Only TokenHash is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	IP        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Live reports whether the token is unrevoked and unexpired at now.
func (t RefreshToken) Live(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// TokenKind distinguishes single-use token purposes.
type TokenKind string

const (
	TokenEmailVerification TokenKind = "email_verification"
	TokenPasswordReset     TokenKind = "password_reset"
)

// SingleUseToken is an email-verification or password-reset token row.
type SingleUseToken struct {
	ID        string
	UserID    string
	Kind      TokenKind
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Redeemable reports whether the token can still be consumed at now.
func (t SingleUseToken) Redeemable(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}

// TOTPSecret is the per-user second-factor enrollment. Secret may be sealed.
type TOTPSecret struct {
	UserID     string
	Secret     string
	Enabled    bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// AuthAttempt is an append-only login audit row. Email is stored as typed.
type AuthAttempt struct {
	ID        string
	Email     string
	UserID    string
	Success   bool
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Email          string
	Password       string
	AcceptedPolicy bool
	FirstName      string
	LastName       string
	Phone          string
}

// LoginInput is the payload for Login. CaptchaProof is optional until the
// failure threshold is reached.
type LoginInput struct {
	Email        string
	Password     string
	CaptchaProof string
}

// LoginResult carries the access token and the raw refresh token, which is
// returned exactly once.
type LoginResult struct {
	AccessToken  string
	Claims       IdentityClaims
	RefreshToken string
}

// TokenResult carries freshly minted claims.
type TokenResult struct {
	AccessToken string
	Claims      IdentityClaims
}

// LogoutInput selects which refresh tokens to revoke. RefreshToken takes
// precedence over UserID; both empty is a no-op.
type LogoutInput struct {
	RefreshToken string
	UserID       string
}

// TOTPSetup is returned when an enrollment starts.
type TOTPSetup struct {
	Secret          string
	ProvisioningURI string
}

// SecondFactorResult is returned after enabling or disabling TOTP.
type SecondFactorResult struct {
	Enabled     bool
	AccessToken string
	Claims      IdentityClaims
}
