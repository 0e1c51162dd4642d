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
)

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config Config

	users    UserStore
	attempts AttemptStore
	tokens   TokenStore
	mailer   Mailer
	captcha  CaptchaVerifier

	auditSink AuditSink
	logger    logging.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the user, attempt, and token stores at once.
func (b *Builder) WithStore(s Store) *Builder {
	b.users = s
	b.attempts = s
	b.tokens = s
	return b
}

func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithAttemptStore(s AttemptStore) *Builder {
	b.attempts = s
	return b
}

// WithTokenStore overrides the token store, e.g. Redis tokens beside Postgres users.
func (b *Builder) WithTokenStore(s TokenStore) *Builder {
	b.tokens = s
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithCaptchaVerifier(v CaptchaVerifier) *Builder {
	b.captcha = v
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.attempts == nil {
		return nil, errors.New("attempt store required")
	}
	if b.tokens == nil {
		return nil, errors.New("token store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	clock := func() time.Time { return now().UTC() }

	log := b.logger
	if log == nil {
		log = logging.Nop{}
	}

	hasher, err := password.New(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}
	// Verified against on unknown-email logins so both paths cost one Argon2 run.
	dummy, err := hasher.Hash("deskauth-dummy-password-0")
	if err != nil {
		return nil, err
	}

	signer, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	otp, err := totp.New(totp.Config{
		Issuer:    cfg.TOTP.Issuer,
		Digits:    cfg.TOTP.Digits,
		Period:    cfg.TOTP.Period,
		Algorithm: cfg.TOTP.Algorithm,
		Skew:      cfg.TOTP.Skew,
	})
	if err != nil {
		return nil, err
	}

	sealer, err := vault.New(cfg.TOTP.SealKey)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		attempts:  b.attempts,
		tokens:    b.tokens,
		mailer:    b.mailer,
		captcha:   b.captcha,
		hasher:    hasher,
		signer:    signer,
		totp:      otp,
		sealer:    sealer,
		policy:    cfg.rolePolicy(),
		metrics:   NewMetrics(cfg.Metrics),
		log:       log.With("component", "deskauth"),
		now:       clock,
		dummyHash: dummy,
	}
	engine.limiter = rate.New(b.attempts, rate.Config{
		Window:    cfg.Login.FailureWindow,
		Threshold: cfg.Login.CaptchaThreshold,
		Now:       clock,
	})
	auditLog := engine.log.With("subsystem", "audit")
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev audit.Event) {
			auditLog.Warn(context.Background(), "audit event dropped", "event_type", ev.EventType, "user_id", ev.UserID)
		},
		OnSinkPanic: func(ev audit.Event, r any) {
			auditLog.Error(context.Background(), "audit sink panicked", "event_type", ev.EventType, "panic", r)
		},
	}, b.auditSink)

	b.built = true
	return engine, nil
}
