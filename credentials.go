package deskauth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/deskauth/internal/secret"
	"github.com/MrEthical07/deskauth/password"
)

// Register creates an active, unverified user with the default role and
// mails an email-verification token. The token is never returned.
//
// Once the user row exists Register succeeds. If the verification token
// cannot be stored the failure is logged and the caller gets the new id;
// ResendVerification issues a replacement.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if !in.AcceptedPolicy {
		return "", ErrPolicyNotAccepted
	}
	if err := password.CheckStrength(in.Password, e.config.Password.MinLength); err != nil {
		return "", ErrWeakPassword
	}
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrInvalidInput
	}

	if _, err := e.users.GetUserByEmail(ctx, email); err == nil {
		e.metrics.Inc(MetricRegisterDuplicate)
		return "", ErrEmailTaken
	} else if !errors.Is(err, ErrRecordNotFound) {
		return "", unavailable(err)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return "", ErrWeakPassword
		}
		return "", unavailable(err)
	}

	now := e.now()
	user, err := e.users.CreateUser(ctx, CreateUserInput{
		ID:               newID(),
		Email:            email,
		PasswordHash:     hash,
		Active:           true,
		Roles:            []string{e.config.Roles.Default},
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		Phone:            strings.TrimSpace(in.Phone),
		AcceptedPolicyAt: now,
		CreatedAt:        now,
	})
	if err != nil {
		// A concurrent registration can win the race after the lookup above.
		if errors.Is(err, ErrRecordExists) {
			e.metrics.Inc(MetricRegisterDuplicate)
			return "", ErrEmailTaken
		}
		return "", unavailable(err)
	}

	e.metrics.Inc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegister, user.ID, true, nil, nil)

	if err := e.sendVerification(ctx, user); err != nil {
		e.log.Warn(ctx, "verification token not issued at registration", "user_id", user.ID, "error", err)
	}
	return user.ID, nil
}

// Login authenticates by email and password and returns fresh claims plus
// a new refresh token bound to the client IP and user agent in ctx.
func (e *Engine) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if err := e.ready(); err != nil {
		return LoginResult{}, err
	}
	email := strings.TrimSpace(in.Email)
	ip := clientIPFromContext(ctx)
	ua := userAgentFromContext(ctx)

	// The gate runs before lookup so unknown emails are throttled too.
	required, err := e.limiter.RequiresCaptcha(ctx, email)
	if err != nil {
		return LoginResult{}, unavailable(err)
	}
	if required {
		ok, err := e.captchaSatisfied(ctx, in.CaptchaProof, ip)
		if err != nil {
			return LoginResult{}, err
		}
		if !ok {
			e.metrics.Inc(MetricLoginCaptchaRequired)
			e.emitAudit(ctx, auditEventLoginCaptchaRequired, "", false, ErrCaptchaRequired, nil)
			return LoginResult{}, ErrCaptchaRequired
		}
	}

	user, err := e.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return LoginResult{}, unavailable(err)
		}
		_, _ = e.hasher.Verify(in.Password, e.dummyHash)
		if err := e.recordAttempt(ctx, email, "", false, ip, ua); err != nil {
			return LoginResult{}, err
		}
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, "", false, ErrInvalidCredentials, map[string]string{"reason": "unknown_email"})
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.Active {
		if e.config.Login.RecordDisabledAttempts {
			if err := e.recordAttempt(ctx, email, user.ID, false, ip, ua); err != nil {
				return LoginResult{}, err
			}
		}
		e.metrics.Inc(MetricLoginAccountDisabled)
		e.emitAudit(ctx, auditEventLoginFailure, user.ID, false, ErrAccountDisabled, nil)
		return LoginResult{}, ErrAccountDisabled
	}

	match, err := e.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		e.log.Error(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
		match = false
	}
	if err := e.recordAttempt(ctx, email, user.ID, match, ip, ua); err != nil {
		return LoginResult{}, err
	}
	if !match {
		e.metrics.Inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, user.ID, false, ErrInvalidCredentials, nil)
		return LoginResult{}, ErrInvalidCredentials
	}

	if e.config.Login.RequireVerifiedEmail && !user.EmailVerified() {
		e.metrics.Inc(MetricLoginEmailNotVerified)
		e.emitAudit(ctx, auditEventLoginFailure, user.ID, false, ErrEmailNotVerified, nil)
		return LoginResult{}, ErrEmailNotVerified
	}

	e.upgradeHash(ctx, user, in.Password)

	enabled, err := e.secondFactorEnabled(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	claims, err := e.issueClaims(user, enabled)
	if err != nil {
		return LoginResult{}, unavailable(err)
	}

	raw, err := secret.RandomToken(e.config.Refresh.SecretBytes)
	if err != nil {
		return LoginResult{}, unavailable(err)
	}
	now := e.now()
	if err := e.tokens.CreateRefreshToken(ctx, RefreshToken{
		ID:        newID(),
		UserID:    user.ID,
		TokenHash: secret.Hash(raw),
		UserAgent: ua,
		IP:        ip,
		IssuedAt:  now,
		ExpiresAt: now.Add(e.config.Refresh.TTL),
	}); err != nil {
		return LoginResult{}, unavailable(err)
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, user.ID, true, nil, nil)

	return LoginResult{
		AccessToken:  claims.AccessToken,
		Claims:       claims.Claims,
		RefreshToken: raw,
	}, nil
}

// Refresh exchanges a live refresh token for claims minted from the current
// user and second-factor state. The refresh token is neither rotated nor
// extended.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenResult, error) {
	if err := e.ready(); err != nil {
		return TokenResult{}, err
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		e.metrics.Inc(MetricRefreshFailure)
		return TokenResult{}, ErrInvalidToken
	}

	rt, err := e.tokens.GetLiveRefreshToken(ctx, secret.Hash(refreshToken), e.now())
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			e.metrics.Inc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshFailure, "", false, ErrInvalidToken, nil)
			return TokenResult{}, ErrInvalidToken
		}
		return TokenResult{}, unavailable(err)
	}

	user, err := e.users.GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			e.metrics.Inc(MetricRefreshFailure)
			return TokenResult{}, ErrInvalidToken
		}
		return TokenResult{}, unavailable(err)
	}
	if !user.Active {
		e.metrics.Inc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, user.ID, false, ErrAccountDisabled, nil)
		return TokenResult{}, ErrAccountDisabled
	}

	enabled, err := e.secondFactorEnabled(ctx, user.ID)
	if err != nil {
		return TokenResult{}, err
	}
	res, err := e.issueClaims(user, enabled)
	if err != nil {
		return TokenResult{}, unavailable(err)
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, user.ID, true, nil, nil)
	return res, nil
}

// Logout revokes the refresh token in.RefreshToken, or every live token of
// in.UserID, and returns how many were revoked. Neither set is a no-op.
func (e *Engine) Logout(ctx context.Context, in LogoutInput) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	now := e.now()

	switch {
	case strings.TrimSpace(in.RefreshToken) != "":
		n, err := e.tokens.RevokeRefreshToken(ctx, secret.Hash(strings.TrimSpace(in.RefreshToken)), now)
		if err != nil {
			return 0, unavailable(err)
		}
		e.metrics.Inc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, in.UserID, true, nil, map[string]string{"scope": "token"})
		return n, nil
	case strings.TrimSpace(in.UserID) != "":
		n, err := e.tokens.RevokeUserRefreshTokens(ctx, in.UserID, now)
		if err != nil {
			return 0, unavailable(err)
		}
		e.metrics.Inc(MetricLogoutAll)
		e.emitAudit(ctx, auditEventLogout, in.UserID, true, nil, map[string]string{"scope": "all"})
		return n, nil
	default:
		return 0, nil
	}
}

func (e *Engine) captchaSatisfied(ctx context.Context, proof, ip string) (bool, error) {
	proof = strings.TrimSpace(proof)
	if proof == "" {
		return false, nil
	}
	if e.captcha == nil {
		return true, nil
	}
	ok, err := e.captcha.VerifyCaptcha(ctx, proof, ip)
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (e *Engine) recordAttempt(ctx context.Context, email, userID string, success bool, ip, ua string) error {
	err := e.attempts.RecordAttempt(ctx, AuthAttempt{
		ID:        newID(),
		Email:     email,
		UserID:    userID,
		Success:   success,
		IP:        ip,
		UserAgent: ua,
		CreatedAt: e.now(),
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// upgradeHash rehashes with the current parameters. Failures are logged only.
func (e *Engine) upgradeHash(ctx context.Context, user User, plain string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(plain)
	if err != nil {
		e.log.Warn(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.log.Warn(ctx, "password rehash not stored", "user_id", user.ID, "error", err)
	}
}
