package deskauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/deskauth/internal/secret"
)

// SetupTOTP starts a fresh enrollment for userID, replacing any existing
// secret (enabled or not) with a new disabled one.
func (e *Engine) SetupTOTP(ctx context.Context, userID string) (TOTPSetup, error) {
	if err := e.ready(); err != nil {
		return TOTPSetup{}, err
	}
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return TOTPSetup{}, ErrInvalidToken
		}
		return TOTPSetup{}, unavailable(err)
	}

	key, err := e.totp.Generate(user.Email)
	if err != nil {
		return TOTPSetup{}, unavailable(err)
	}
	raw := key.Secret()
	sealed, err := e.sealer.Seal(raw)
	if err != nil {
		return TOTPSetup{}, unavailable(err)
	}
	if err := e.tokens.SaveTOTPSecret(ctx, TOTPSecret{
		UserID:    user.ID,
		Secret:    sealed,
		Enabled:   false,
		CreatedAt: e.now(),
	}); err != nil {
		return TOTPSetup{}, unavailable(err)
	}

	e.metrics.Inc(MetricTOTPSetup)
	e.emitAudit(ctx, auditEventTOTPSetup, user.ID, true, nil, nil)
	return TOTPSetup{
		Secret:          raw,
		ProvisioningURI: key.URL(),
	}, nil
}

// VerifyTOTP checks code against the pending or active secret, enables it,
// and re-issues claims with the second factor satisfied.
func (e *Engine) VerifyTOTP(ctx context.Context, userID, code string) (SecondFactorResult, error) {
	if err := e.ready(); err != nil {
		return SecondFactorResult{}, err
	}
	stored, err := e.tokens.GetTOTPSecret(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return SecondFactorResult{}, ErrNoSetupInProgress
		}
		return SecondFactorResult{}, unavailable(err)
	}
	plain, err := e.sealer.Open(stored.Secret)
	if err != nil {
		return SecondFactorResult{}, unavailable(err)
	}

	now := e.now()
	ok, err := e.totp.Verify(plain, code, now)
	if err != nil {
		return SecondFactorResult{}, unavailable(err)
	}
	if !ok {
		e.metrics.Inc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, userID, false, ErrInvalidCode, nil)
		return SecondFactorResult{}, ErrInvalidCode
	}

	if err := e.tokens.EnableTOTPSecret(ctx, userID, now); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			// Disabled concurrently.
			return SecondFactorResult{}, ErrNoSetupInProgress
		}
		return SecondFactorResult{}, unavailable(err)
	}

	enabled := true
	_, res, err := e.claimsForUser(ctx, userID, &enabled)
	if err != nil {
		return SecondFactorResult{}, err
	}
	e.metrics.Inc(MetricTOTPSuccess)
	if !stored.Enabled {
		e.emitAudit(ctx, auditEventTOTPEnabled, userID, true, nil, nil)
	}
	return SecondFactorResult{Enabled: true, AccessToken: res.AccessToken, Claims: res.Claims}, nil
}

// DisableTOTP removes the enrollment (absent is fine) and re-issues claims
// without the second factor.
func (e *Engine) DisableTOTP(ctx context.Context, userID string) (SecondFactorResult, error) {
	if err := e.ready(); err != nil {
		return SecondFactorResult{}, err
	}
	if err := e.tokens.DeleteTOTPSecret(ctx, userID); err != nil {
		return SecondFactorResult{}, unavailable(err)
	}

	disabled := false
	_, res, err := e.claimsForUser(ctx, userID, &disabled)
	if err != nil {
		return SecondFactorResult{}, err
	}
	e.metrics.Inc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, userID, true, nil, nil)
	return SecondFactorResult{Enabled: false, AccessToken: res.AccessToken, Claims: res.Claims}, nil
}

// GenerateRecoveryCodes replaces the unused recovery codes of userID with a
// new batch and returns the raw codes. Only hashes are stored.
func (e *Engine) GenerateRecoveryCodes(ctx context.Context, userID string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, unavailable(err)
	}

	n := e.config.TOTP.RecoveryCodeCount
	codes := make([]string, 0, n)
	hashes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(codes) < n {
		code, err := secret.RandomToken(e.config.TOTP.RecoveryCodeBytes)
		if err != nil {
			return nil, unavailable(err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		hashes = append(hashes, secret.Hash(code))
	}

	if err := e.tokens.ReplaceRecoveryCodes(ctx, userID, hashes, e.now()); err != nil {
		return nil, unavailable(err)
	}
	e.metrics.Inc(MetricRecoveryCodesGenerated)
	e.emitAudit(ctx, auditEventRecoveryGenerated, userID, true, nil, nil)
	return codes, nil
}

// VerifyRecoveryCode redeems one unused recovery code of userID.
func (e *Engine) VerifyRecoveryCode(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	canonical := secret.Canonical(code)
	if canonical == "" {
		e.metrics.Inc(MetricRecoveryCodeFailed)
		return ErrInvalidRecoveryCode
	}
	ok, err := e.tokens.ConsumeRecoveryCode(ctx, userID, secret.Hash(canonical), e.now())
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		e.metrics.Inc(MetricRecoveryCodeFailed)
		e.emitAudit(ctx, auditEventRecoveryFailure, userID, false, ErrInvalidRecoveryCode, nil)
		return ErrInvalidRecoveryCode
	}
	e.metrics.Inc(MetricRecoveryCodeUsed)
	e.emitAudit(ctx, auditEventRecoveryUsed, userID, true, nil, nil)
	return nil
}
