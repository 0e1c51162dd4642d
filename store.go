package deskauth

import (
	"context"
	"time"
)

// UserStore persists identity records.
type UserStore interface {
	// CreateUser returns ErrRecordExists when the email is taken (case-insensitive).
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	// GetUserByEmail returns ErrRecordNotFound for unknown emails.
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	MarkEmailVerified(ctx context.Context, userID string, at time.Time) error
}

// AttemptStore is the append-only login attempt log.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, a AuthAttempt) error
	// CountFailuresSince counts failed attempts for email (case-insensitive) at or after since.
	CountFailuresSince(ctx context.Context, email string, since time.Time) (int, error)
	// ListAttempts returns at most limit attempts for userID, newest first.
	ListAttempts(ctx context.Context, userID string, limit int) ([]AuthAttempt, error)
	// ListAttemptsByEmail returns at most limit attempts for email (case-insensitive),
	// newest first, including attempts that matched no account.
	ListAttemptsByEmail(ctx context.Context, email string, limit int) ([]AuthAttempt, error)
}

// TokenStore persists refresh tokens, single-use tokens, and second-factor state.
// Consume and revoke operations must be atomic at the storage layer.
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, t RefreshToken) error
	// GetLiveRefreshToken returns ErrRecordNotFound unless the token is unrevoked and unexpired.
	GetLiveRefreshToken(ctx context.Context, hash string, now time.Time) (RefreshToken, error)
	// RevokeRefreshToken marks one unrevoked token and returns how many rows changed.
	RevokeRefreshToken(ctx context.Context, hash string, now time.Time) (int, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int, error)

	CreateSingleUseToken(ctx context.Context, t SingleUseToken) error
	// ConsumeSingleUseToken marks the token used if it is of kind, unused, and
	// unexpired. Every other case returns ErrRecordNotFound.
	ConsumeSingleUseToken(ctx context.Context, kind TokenKind, hash string, now time.Time) (SingleUseToken, error)

	// SaveTOTPSecret replaces any existing secret for the user.
	SaveTOTPSecret(ctx context.Context, s TOTPSecret) error
	GetTOTPSecret(ctx context.Context, userID string) (TOTPSecret, error)
	EnableTOTPSecret(ctx context.Context, userID string, at time.Time) error
	// DeleteTOTPSecret is idempotent.
	DeleteTOTPSecret(ctx context.Context, userID string) error

	// ReplaceRecoveryCodes drops unused codes and stores hashes as a new batch.
	ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string, now time.Time) error
	// ConsumeRecoveryCode marks a matching unused code used and reports whether one matched.
	ConsumeRecoveryCode(ctx context.Context, userID, hash string, now time.Time) (bool, error)
}

// Store bundles every persistence interface the engine consumes.
type Store interface {
	UserStore
	AttemptStore
	TokenStore
}

// Mailer delivers single-use tokens. Delivery failures never fail the
// calling operation.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// CaptchaVerifier checks a CAPTCHA proof. When none is configured any
// non-empty proof satisfies the login gate.
type CaptchaVerifier interface {
	VerifyCaptcha(ctx context.Context, proof, ip string) (bool, error)
}
