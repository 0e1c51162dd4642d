package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Default policy values.
const (
	DefaultWindow    = 15 * time.Minute
	DefaultThreshold = 5
)

// FailureCounter is the read side of the attempt log.
type FailureCounter interface {
	CountFailuresSince(ctx context.Context, email string, since time.Time) (int, error)
}

// Config holds limiter tuning parameters.
type Config struct {
	Window    time.Duration
	Threshold int
	Now       func() time.Time
}

// Limiter decides whether a login must carry a CAPTCHA proof.
type Limiter struct {
	counter FailureCounter
	config  Config
}

// New creates a [Limiter] over counter. Zero config values take the defaults.
func New(counter FailureCounter, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{counter: counter, config: cfg}
}

// FailuresSince returns the number of failed attempts for key within the
// trailing window. Keys are compared case-insensitively.
func (l *Limiter) FailuresSince(ctx context.Context, key string, window time.Duration) (int, error) {
	since := l.config.Now().Add(-window)
	n, err := l.counter.CountFailuresSince(ctx, normalizeKey(key), since)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n, nil
}

// RequiresCaptcha reports whether the configured threshold has been reached
// for email within the configured window.
func (l *Limiter) RequiresCaptcha(ctx context.Context, email string) (bool, error) {
	n, err := l.FailuresSince(ctx, email, l.config.Window)
	if err != nil {
		return false, err
	}
	return n >= l.config.Threshold, nil
}

// Check returns ErrCaptchaRequired when the threshold is reached and
// hasProof is false.
func (l *Limiter) Check(ctx context.Context, email string, hasProof bool) (required bool, err error) {
	required, err = l.RequiresCaptcha(ctx, email)
	if err != nil {
		return false, err
	}
	if required && !hasProof {
		return true, ErrCaptchaRequired
	}
	return required, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
