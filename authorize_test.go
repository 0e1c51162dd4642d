package deskauth_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/internal/audit"
	"github.com/MrEthical07/deskauth/store/memory"
)

func TestAuthorize(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name     string
		roles    []string
		second   bool
		required []string
		want     bool
	}{
		{"no requirement", nil, false, nil, true},
		{"customer", []string{"customer"}, false, []string{"customer"}, true},
		{"any of", []string{"technician"}, false, []string{"admin", "technician"}, true},
		{"missing role", []string{"customer"}, false, []string{"technician"}, false},
		{"admin without second factor", []string{"admin"}, false, []string{"admin"}, false},
		{"admin with second factor", []string{"admin"}, true, []string{"admin"}, true},
		{"admin for other role", []string{"admin"}, false, []string{"manager"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := deskauth.IdentityClaims{Subject: "u1", Roles: tt.roles, SecondFactor: tt.second}
			if got := h.engine.Authorize(claims, tt.required...); got != tt.want {
				t.Fatalf("Authorize = %v, want %v", got, tt.want)
			}
			err := h.engine.Require(claims, tt.required...)
			if tt.want != (err == nil) || (err != nil && !errors.Is(err, deskauth.ErrDenied)) {
				t.Fatalf("Require = %v", err)
			}
		})
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "xena@example.com")
	res := h.login(t, "xena@example.com")
	ctx := context.Background()

	parts := strings.Split(res.AccessToken, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, tok := range map[string]string{"empty": "", "garbage": "abc", "tampered": tampered} {
		if _, err := h.engine.Authenticate(ctx, tok); !errors.Is(err, deskauth.ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	h.clock.Advance(16 * time.Minute)
	if _, err := h.engine.Authenticate(ctx, res.AccessToken); !errors.Is(err, deskauth.ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}

	if got := h.engine.MetricsSnapshot().Counters[deskauth.MetricAuthenticateFailure]; got != 4 {
		t.Fatalf("expected 4 authenticate failures, got %d", got)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want deskauth.Kind
	}{
		{nil, deskauth.KindNone},
		{deskauth.ErrEmailTaken, deskauth.KindEmailTaken},
		{fmt.Errorf("login: %w", deskauth.ErrCaptchaRequired), deskauth.KindCaptchaRequired},
		{deskauth.ErrInvalidOrExpiredToken, deskauth.KindInvalidOrExpiredToken},
		{fmt.Errorf("%w: dial tcp: refused", deskauth.ErrUnavailable), deskauth.KindUnavailable},
		{errors.New("surprise"), deskauth.KindUnavailable},
	}
	for _, tt := range tests {
		if got := deskauth.KindOf(tt.err); got != tt.want {
			t.Fatalf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type failingStore struct {
	*memory.Store
}

func (failingStore) CountFailuresSince(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("connection reset")
}

func TestInfrastructureFailuresAreUnavailable(t *testing.T) {
	engine, err := deskauth.New().WithConfig(testConfig()).WithStore(failingStore{memory.New()}).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	_, err = engine.Login(context.Background(), deskauth.LoginInput{Email: "a@example.com", Password: goodPassword})
	if !errors.Is(err, deskauth.ErrUnavailable) || errors.Is(err, deskauth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrUnavailable only, got %v", err)
	}
}

func TestAuditEventsCarryNoSecrets(t *testing.T) {
	sink := audit.NewChannelSink(256)
	h := newHarness(t, func(cfg *deskauth.Config, b *deskauth.Builder) {
		cfg.Audit.Enabled = true
		cfg.Audit.DropIfFull = false
		b.WithAuditSink(sink)
	})
	ctx := context.Background()

	id := h.register(t, "yara@example.com")
	res := h.login(t, "yara@example.com")
	_, _ = h.engine.Login(ctx, deskauth.LoginInput{Email: "yara@example.com", Password: "wrongpass1"})
	_ = h.engine.RequestPasswordReset(ctx, "yara@example.com")
	codes, _ := h.engine.GenerateRecoveryCodes(ctx, id)
	_ = h.engine.VerifyRecoveryCode(ctx, id, codes[0])
	h.engine.Close()

	secrets := []string{goodPassword, "wrongpass1", res.RefreshToken, res.AccessToken,
		h.mail.lastReset("yara@example.com"), h.mail.lastVerification("yara@example.com"), codes[0]}

	var types []string
	for {
		select {
		case ev := <-sink.Events():
			types = append(types, ev.EventType)
			blob := fmt.Sprintf("%+v", ev)
			for _, s := range secrets {
				if s != "" && strings.Contains(blob, s) {
					t.Fatalf("event %s leaks a secret: %s", ev.EventType, blob)
				}
			}
			continue
		default:
		}
		break
	}
	if len(types) < 6 {
		t.Fatalf("expected audit events for every step, got %v", types)
	}
}

func TestBuildValidation(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.PrivateKey = []byte("short")
	if _, err := deskauth.New().WithConfig(cfg).WithStore(memory.New()).Build(); err == nil {
		t.Fatal("expected short key to be rejected")
	}

	if _, err := deskauth.New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected missing stores to be rejected")
	}

	cfg = testConfig()
	cfg.TOTP.SealKey = []byte("too-short")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected bad seal key to be rejected")
	}

	b := deskauth.New().WithConfig(testConfig()).WithStore(memory.New())
	engine, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("builder must be single use")
	}
}

func TestNilEngineIsNotReady(t *testing.T) {
	var e *deskauth.Engine
	if _, err := e.Login(context.Background(), deskauth.LoginInput{}); !errors.Is(err, deskauth.ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if e.Authorize(deskauth.IdentityClaims{}) {
		t.Fatal("nil engine must deny")
	}
}
