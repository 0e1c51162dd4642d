package deskauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/deskauth/internal/audit"
	"github.com/MrEthical07/deskauth/internal/logging"
	"github.com/MrEthical07/deskauth/internal/rate"
	"github.com/MrEthical07/deskauth/internal/totp"
	"github.com/MrEthical07/deskauth/internal/vault"
	"github.com/MrEthical07/deskauth/jwt"
	"github.com/MrEthical07/deskauth/password"
	"github.com/MrEthical07/deskauth/permission"
	"github.com/google/uuid"
)

// Logger is the structured logger accepted by the Builder.
type Logger = logging.Logger

// Engine implements the credential, second-factor, and authorization
// operations. It holds only injected collaborators and is safe for
// concurrent use; correctness of single-use operations relies on store
// atomicity, not on in-process locks.
type Engine struct {
	config Config

	users    UserStore
	attempts AttemptStore
	tokens   TokenStore
	mailer   Mailer
	captcha  CaptchaVerifier

	limiter *rate.Limiter
	hasher  *password.Hasher
	signer  *jwt.Manager
	totp    *totp.Manager
	sealer  *vault.Sealer
	policy  permission.Policy

	audit   *audit.Dispatcher
	metrics *Metrics
	log     logging.Logger

	now       func() time.Time
	dummyHash string
}

// Close flushes the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// Policy returns the role policy used by Authorize.
func (e *Engine) Policy() permission.Policy {
	return e.policy
}

// Authenticate verifies an access token and returns its claims. Any failure,
// including expiry, is ErrInvalidToken.
func (e *Engine) Authenticate(ctx context.Context, token string) (IdentityClaims, error) {
	if err := e.ready(); err != nil {
		return IdentityClaims{}, err
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricAuthenticateLatency, time.Since(start)) }()

	token = strings.TrimSpace(token)
	if token == "" {
		e.metrics.Inc(MetricAuthenticateFailure)
		return IdentityClaims{}, ErrInvalidToken
	}
	claims, err := e.signer.Verify(token)
	if err != nil {
		e.metrics.Inc(MetricAuthenticateFailure)
		return IdentityClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// Authorize reports whether claims satisfy required. An empty requirement
// always permits; the admin role additionally requires a satisfied second factor.
func (e *Engine) Authorize(claims IdentityClaims, required ...string) bool {
	if e == nil {
		return false
	}
	ok := e.policy.Authorize(claims.Roles, claims.SecondFactor, required...)
	if !ok {
		e.metrics.Inc(MetricAuthorizeDenied)
	}
	return ok
}

// Require is Authorize returning ErrDenied.
func (e *Engine) Require(claims IdentityClaims, required ...string) error {
	if !e.Authorize(claims, required...) {
		return ErrDenied
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.tokens == nil || e.attempts == nil || e.signer == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

// issueClaims mints an access token from the user record and second-factor state.
func (e *Engine) issueClaims(user User, secondFactor bool) (TokenResult, error) {
	now := e.now().Truncate(time.Second)
	claims := IdentityClaims{
		Subject:      user.ID,
		Email:        user.Email,
		Roles:        append([]string(nil), user.Roles...),
		SecondFactor: secondFactor,
		IssuedAt:     now,
		ExpiresAt:    now.Add(e.config.JWT.AccessTTL),
	}
	token, err := e.signer.Sign(claims, e.config.JWT.AccessTTL)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{AccessToken: token, Claims: claims}, nil
}

// secondFactorEnabled reads whether userID has an enabled TOTP enrollment.
func (e *Engine) secondFactorEnabled(ctx context.Context, userID string) (bool, error) {
	s, err := e.tokens.GetTOTPSecret(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, unavailable(err)
	}
	return s.Enabled, nil
}

// claimsForUser reloads the user and second-factor state and mints claims.
func (e *Engine) claimsForUser(ctx context.Context, userID string, secondFactor *bool) (User, TokenResult, error) {
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return User{}, TokenResult{}, ErrInvalidToken
		}
		return User{}, TokenResult{}, unavailable(err)
	}
	var enabled bool
	if secondFactor != nil {
		enabled = *secondFactor
	} else if enabled, err = e.secondFactorEnabled(ctx, user.ID); err != nil {
		return User{}, TokenResult{}, err
	}
	res, err := e.issueClaims(user, enabled)
	if err != nil {
		return User{}, TokenResult{}, unavailable(err)
	}
	return user, res, nil
}

func newID() string {
	return uuid.NewString()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
