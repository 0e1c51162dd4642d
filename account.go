package deskauth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/deskauth/internal/secret"
	"github.com/MrEthical07/deskauth/password"
)

// RequestPasswordReset mails a reset token when email belongs to a user.
// Unknown emails succeed silently so the result cannot be used to probe
// for accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	user, err := e.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		return unavailable(err)
	}

	raw, err := e.issueSingleUse(ctx, user.ID, TokenPasswordReset, e.config.Tokens.ResetTTL)
	if err != nil {
		return err
	}
	e.metrics.Inc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, user.ID, true, nil, nil)

	if e.mailer != nil {
		if err := e.mailer.SendPasswordReset(ctx, user.Email, raw); err != nil {
			e.mailFailed(ctx, user.ID, "password_reset", err)
		}
	}
	return nil
}

// ResetPassword redeems a reset token and sets a new password. Existing
// refresh tokens survive unless Security.RevokeSessionsOnReset is set.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := password.CheckStrength(newPassword, e.config.Password.MinLength); err != nil {
		return ErrWeakPassword
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return ErrWeakPassword
		}
		return unavailable(err)
	}

	consumed, err := e.consumeSingleUse(ctx, TokenPasswordReset, token)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			e.metrics.Inc(MetricPasswordResetFailure)
		}
		return err
	}

	if err := e.users.UpdatePasswordHash(ctx, consumed.UserID, hash); err != nil {
		return unavailable(err)
	}
	if e.config.Security.RevokeSessionsOnReset {
		if _, err := e.tokens.RevokeUserRefreshTokens(ctx, consumed.UserID, e.now()); err != nil {
			return unavailable(err)
		}
	}

	e.metrics.Inc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordReset, consumed.UserID, true, nil, nil)
	return nil
}

// VerifyEmail redeems a verification token and stamps the user verified.
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	consumed, err := e.consumeSingleUse(ctx, TokenEmailVerification, token)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			e.metrics.Inc(MetricEmailVerificationFailure)
		}
		return err
	}
	if err := e.users.MarkEmailVerified(ctx, consumed.UserID, e.now()); err != nil {
		return unavailable(err)
	}
	e.metrics.Inc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerified, consumed.UserID, true, nil, nil)
	return nil
}

// ResendVerification mails a fresh verification token to an unverified
// user. Earlier tokens stay valid. Unknown or verified emails are a no-op.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	user, err := e.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		return unavailable(err)
	}
	if user.EmailVerified() {
		return nil
	}
	return e.sendVerification(ctx, user)
}

// ChangePassword replaces the password of userID after checking the current
// one, then revokes every live refresh token of the user.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return unavailable(err)
	}

	ok, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		e.log.Error(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
	}
	if !ok {
		e.metrics.Inc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChanged, user.ID, false, ErrIncorrectPassword, nil)
		return ErrIncorrectPassword
	}
	if err := password.CheckStrength(newPassword, e.config.Password.MinLength); err != nil {
		return ErrWeakPassword
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return ErrWeakPassword
		}
		return unavailable(err)
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return unavailable(err)
	}
	revoked, err := e.tokens.RevokeUserRefreshTokens(ctx, user.ID, e.now())
	if err != nil {
		return unavailable(err)
	}

	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChanged, user.ID, true, nil, map[string]string{"revoked": strconv.Itoa(revoked)})
	return nil
}

// History returns the most recent login attempts of userID, newest first.
func (e *Engine) History(ctx context.Context, userID string) ([]AuthAttempt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidToken
	}
	rows, err := e.attempts.ListAttempts(ctx, userID, e.config.Login.HistoryLimit)
	if err != nil {
		return nil, unavailable(err)
	}
	if len(rows) > e.config.Login.HistoryLimit {
		rows = rows[:e.config.Login.HistoryLimit]
	}
	return rows, nil
}

func (e *Engine) sendVerification(ctx context.Context, user User) error {
	raw, err := e.issueSingleUse(ctx, user.ID, TokenEmailVerification, e.config.Tokens.VerificationTTL)
	if err != nil {
		return err
	}
	e.metrics.Inc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventVerificationRequested, user.ID, true, nil, nil)

	if e.mailer != nil {
		if err := e.mailer.SendVerification(ctx, user.Email, raw); err != nil {
			e.mailFailed(ctx, user.ID, "verification", err)
		}
	}
	return nil
}

// issueSingleUse stores the hash of a fresh token and returns the raw value.
func (e *Engine) issueSingleUse(ctx context.Context, userID string, kind TokenKind, ttl time.Duration) (string, error) {
	raw, err := secret.RandomToken(e.config.Tokens.SecretBytes)
	if err != nil {
		return "", unavailable(err)
	}
	now := e.now()
	if err := e.tokens.CreateSingleUseToken(ctx, SingleUseToken{
		ID:        newID(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: secret.Hash(raw),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}); err != nil {
		return "", unavailable(err)
	}
	return raw, nil
}

func (e *Engine) consumeSingleUse(ctx context.Context, kind TokenKind, raw string) (SingleUseToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SingleUseToken{}, ErrInvalidOrExpiredToken
	}
	t, err := e.tokens.ConsumeSingleUseToken(ctx, kind, secret.Hash(raw), e.now())
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return SingleUseToken{}, ErrInvalidOrExpiredToken
		}
		return SingleUseToken{}, unavailable(err)
	}
	return t, nil
}

func (e *Engine) mailFailed(ctx context.Context, userID, kind string, err error) {
	e.metrics.Inc(MetricMailFailure)
	e.log.Warn(ctx, "mail delivery failed", "user_id", userID, "kind", kind, "error", err)
	e.emitAudit(ctx, auditEventMailFailure, userID, false, nil, map[string]string{"kind": kind})
}
