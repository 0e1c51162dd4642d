package deskauth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/deskauth"
)

func TestVerifyEmail(t *testing.T) {
	h := newHarness(t, nil)
	id := h.register(t, "kim@example.com")
	ctx := context.Background()
	first := h.mail.lastVerification("kim@example.com")

	if err := h.engine.ResendVerification(ctx, "KIM@example.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	second := h.mail.lastVerification("kim@example.com")
	if second == "" || second == first {
		t.Fatal("resend must mail a fresh token")
	}

	// Earlier tokens stay valid until used.
	if err := h.engine.VerifyEmail(ctx, first); err != nil {
		t.Fatalf("verify: %v", err)
	}
	user, _ := h.store.GetUserByID(ctx, id)
	if !user.EmailVerified() {
		t.Fatal("user not marked verified")
	}
	verifiedAt := *user.EmailVerifiedAt

	if err := h.engine.VerifyEmail(ctx, first); !errors.Is(err, deskauth.ErrInvalidOrExpiredToken) {
		t.Fatalf("reuse: expected ErrInvalidOrExpiredToken, got %v", err)
	}

	h.clock.Advance(time.Hour)
	if err := h.engine.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("second token: %v", err)
	}
	user, _ = h.store.GetUserByID(ctx, id)
	if !user.EmailVerifiedAt.Equal(verifiedAt) {
		t.Fatalf("verification time moved from %v to %v", verifiedAt, *user.EmailVerifiedAt)
	}

	if err := h.engine.ResendVerification(ctx, "kim@example.com"); err != nil {
		t.Fatalf("resend for verified user: %v", err)
	}
	if got := h.mail.lastVerification("kim@example.com"); got != second {
		t.Fatal("verified users must not be mailed again")
	}
	if err := h.engine.ResendVerification(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("resend for unknown email: %v", err)
	}
}

func TestVerifyEmailExpiry(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "lee@example.com")
	token := h.mail.lastVerification("lee@example.com")

	h.clock.Advance(24*time.Hour + time.Second)
	if err := h.engine.VerifyEmail(context.Background(), token); !errors.Is(err, deskauth.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "max@example.com")
	session := h.login(t, "max@example.com")
	ctx := context.Background()

	if err := h.engine.RequestPasswordReset(ctx, "unknown@example.com"); err != nil {
		t.Fatalf("unknown email must succeed silently: %v", err)
	}
	if err := h.engine.RequestPasswordReset(ctx, "Max@Example.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	token := h.mail.lastReset("max@example.com")
	if token == "" {
		t.Fatal("reset token not mailed")
	}

	if err := h.engine.ResetPassword(ctx, token, "short"); !errors.Is(err, deskauth.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := h.engine.ResetPassword(ctx, token, "n3wpassword"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := h.engine.ResetPassword(ctx, token, "an0therpass"); !errors.Is(err, deskauth.ErrInvalidOrExpiredToken) {
		t.Fatalf("reuse: expected ErrInvalidOrExpiredToken, got %v", err)
	}

	if _, err := h.engine.Login(ctx, deskauth.LoginInput{Email: "max@example.com", Password: goodPassword}); !errors.Is(err, deskauth.ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := h.engine.Login(ctx, deskauth.LoginInput{Email: "max@example.com", Password: "n3wpassword"}); err != nil {
		t.Fatalf("new password: %v", err)
	}

	// Sessions survive a reset unless configured otherwise.
	if _, err := h.engine.Refresh(ctx, session.RefreshToken); err != nil {
		t.Fatalf("refresh after reset: %v", err)
	}
}

func TestPasswordResetRevokesWhenConfigured(t *testing.T) {
	h := newHarness(t, func(cfg *deskauth.Config, _ *deskauth.Builder) {
		cfg.Security.RevokeSessionsOnReset = true
	})
	h.register(t, "ned@example.com")
	session := h.login(t, "ned@example.com")
	ctx := context.Background()

	_ = h.engine.RequestPasswordReset(ctx, "ned@example.com")
	if err := h.engine.ResetPassword(ctx, h.mail.lastReset("ned@example.com"), "n3wpassword"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := h.engine.Refresh(ctx, session.RefreshToken); !errors.Is(err, deskauth.ErrInvalidToken) {
		t.Fatalf("expected revoked session, got %v", err)
	}
}

func TestPasswordResetTokenExpiresAndIsKindBound(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "olga@example.com")
	ctx := context.Background()

	// A verification token cannot reset a password.
	if err := h.engine.ResetPassword(ctx, h.mail.lastVerification("olga@example.com"), "n3wpassword"); !errors.Is(err, deskauth.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}

	_ = h.engine.RequestPasswordReset(ctx, "olga@example.com")
	h.clock.Advance(31 * time.Minute)
	if err := h.engine.ResetPassword(ctx, h.mail.lastReset("olga@example.com"), "n3wpassword"); !errors.Is(err, deskauth.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected expired token, got %v", err)
	}
}

func TestSingleUseTokenHasOneWinner(t *testing.T) {
	h := newHarness(t, nil)
	h.register(t, "pat@example.com")
	ctx := context.Background()
	_ = h.engine.RequestPasswordReset(ctx, "pat@example.com")
	token := h.mail.lastReset("pat@example.com")

	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		invalid atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := h.engine.ResetPassword(ctx, token, "n3wpassword"); {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, deskauth.ErrInvalidOrExpiredToken):
				invalid.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || invalid.Load() != 15 {
		t.Fatalf("expected exactly one winner, got wins=%d invalid=%d", wins.Load(), invalid.Load())
	}
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t, nil)
	id := h.register(t, "quinn@example.com")
	a := h.login(t, "quinn@example.com")
	b := h.login(t, "quinn@example.com")
	ctx := context.Background()

	if err := h.engine.ChangePassword(ctx, id, "wrongpass1", "n3wpassword"); !errors.Is(err, deskauth.ErrIncorrectPassword) {
		t.Fatalf("expected ErrIncorrectPassword, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, id, goodPassword, "weak"); !errors.Is(err, deskauth.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, "missing", goodPassword, "n3wpassword"); !errors.Is(err, deskauth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := h.engine.ChangePassword(ctx, id, goodPassword, "n3wpassword"); err != nil {
		t.Fatalf("change: %v", err)
	}

	for _, rt := range []string{a.RefreshToken, b.RefreshToken} {
		if _, err := h.engine.Refresh(ctx, rt); !errors.Is(err, deskauth.ErrInvalidToken) {
			t.Fatalf("sessions must be revoked after a change, got %v", err)
		}
	}
	if _, err := h.engine.Login(ctx, deskauth.LoginInput{Email: "quinn@example.com", Password: "n3wpassword"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestHistoryLimit(t *testing.T) {
	h := newHarness(t, func(cfg *deskauth.Config, _ *deskauth.Builder) {
		cfg.Login.HistoryLimit = 3
		cfg.Login.CaptchaThreshold = 100
	})
	id := h.register(t, "ray@example.com")
	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Second)
		_, _ = h.engine.Login(context.Background(), deskauth.LoginInput{Email: "ray@example.com", Password: "wrongpass1"})
	}
	h.clock.Advance(time.Second)
	h.login(t, "ray@example.com")

	hist, err := h.engine.History(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 || !hist[0].Success || hist[1].Success {
		t.Fatalf("expected newest three with the success first, got %+v", hist)
	}
}
