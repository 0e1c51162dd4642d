package deskauth

import (
	"errors"
	"fmt"
)

var (
	// ErrPolicyNotAccepted is returned by Register when a required consent flag is false.
	ErrPolicyNotAccepted = errors.New("policy not accepted")
	// ErrWeakPassword is returned when a new password fails the strength policy.
	ErrWeakPassword = errors.New("weak password")
	// ErrEmailTaken is returned by Register for an existing email (case-insensitive).
	ErrEmailTaken = errors.New("email already registered")

	// ErrCaptchaRequired is returned by Login once the failure threshold is reached without a valid proof.
	ErrCaptchaRequired = errors.New("captcha required")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned for inactive accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrEmailNotVerified is returned when login requires a verified email.
	ErrEmailNotVerified = errors.New("email not verified")

	// ErrInvalidToken is returned by Refresh for unknown, revoked, or expired refresh tokens
	// and by Authenticate for bad access tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidOrExpiredToken is returned for single-use tokens that are unknown, used, or expired.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrNoSetupInProgress is returned by VerifyTOTP when the user has no pending or active secret.
	ErrNoSetupInProgress = errors.New("no totp setup in progress")
	// ErrInvalidCode is returned when a TOTP code does not match the current window.
	ErrInvalidCode = errors.New("invalid totp code")
	// ErrInvalidRecoveryCode is returned for unknown or already used recovery codes.
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")

	// ErrIncorrectPassword is returned by ChangePassword when the current password does not verify.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrDenied is returned by authorization checks.
	ErrDenied = errors.New("denied")

	// ErrInvalidInput is returned for malformed request fields such as an empty email.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable wraps infrastructure failures. It is never replaced by a domain error.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned when a nil or partially built Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrRecordNotFound is returned by stores for absent rows.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists is returned by stores on a uniqueness violation.
	ErrRecordExists = errors.New("record already exists")
)

// Kind is the transport-independent class of an error.
type Kind string

const (
	KindNone                  Kind = ""
	KindPolicyNotAccepted     Kind = "policy_not_accepted"
	KindWeakPassword          Kind = "weak_password"
	KindEmailTaken            Kind = "email_taken"
	KindCaptchaRequired       Kind = "captcha_required"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindAccountDisabled       Kind = "account_disabled"
	KindEmailNotVerified      Kind = "email_not_verified"
	KindInvalidToken          Kind = "invalid_token"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindNoSetupInProgress     Kind = "no_setup_in_progress"
	KindInvalidCode           Kind = "invalid_code"
	KindInvalidRecoveryCode   Kind = "invalid_recovery_code"
	KindIncorrectPassword     Kind = "incorrect_password"
	KindDenied                Kind = "denied"
	KindInvalidInput          Kind = "invalid_input"
	KindUnavailable           Kind = "unavailable"
)

var kindTable = []struct {
	err  error
	kind Kind
}{
	{ErrPolicyNotAccepted, KindPolicyNotAccepted},
	{ErrWeakPassword, KindWeakPassword},
	{ErrEmailTaken, KindEmailTaken},
	{ErrCaptchaRequired, KindCaptchaRequired},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrAccountDisabled, KindAccountDisabled},
	{ErrEmailNotVerified, KindEmailNotVerified},
	{ErrInvalidToken, KindInvalidToken},
	{ErrInvalidOrExpiredToken, KindInvalidOrExpiredToken},
	{ErrNoSetupInProgress, KindNoSetupInProgress},
	{ErrInvalidCode, KindInvalidCode},
	{ErrInvalidRecoveryCode, KindInvalidRecoveryCode},
	{ErrIncorrectPassword, KindIncorrectPassword},
	{ErrDenied, KindDenied},
	{ErrInvalidInput, KindInvalidInput},
}

// KindOf classifies err. Anything that is not a domain error, including
// ErrUnavailable and unknown errors, is KindUnavailable.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrUnavailable) {
		return KindUnavailable
	}
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindUnavailable
}

func unavailable(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
