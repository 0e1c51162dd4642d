// Package storetest holds behavioural tests shared by every deskauth store
// implementation. Each Run function takes a factory returning a fresh, empty
// store.
package storetest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func base() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// RunUserStore exercises deskauth.UserStore.
func RunUserStore(t *testing.T, newStore func(t *testing.T) deskauth.UserStore) {
	t.Run("create and lookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()

		created, err := s.CreateUser(ctx, deskauth.CreateUserInput{
			ID:           uuid.NewString(),
			Email:        "ada@example.com",
			PasswordHash: "hash-1",
			Active:       true,
			Roles:        []string{"customer"},
			FirstName:    "Ada",
			CreatedAt:    now,
		})
		require.NoError(t, err)

		byEmail, err := s.GetUserByEmail(ctx, "ADA@Example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
		assert.Equal(t, []string{"customer"}, byEmail.Roles)
		assert.True(t, byEmail.Active)
		assert.False(t, byEmail.EmailVerified())

		byID, err := s.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", byID.Email)
	})

	t.Run("duplicate email differs only in case", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateUser(ctx, deskauth.CreateUserInput{ID: uuid.NewString(), Email: "dup@example.com", PasswordHash: "h", CreatedAt: base()})
		require.NoError(t, err)
		_, err = s.CreateUser(ctx, deskauth.CreateUserInput{ID: uuid.NewString(), Email: "DUP@example.com", PasswordHash: "h", CreatedAt: base()})
		require.ErrorIs(t, err, deskauth.ErrRecordExists)
	})

	t.Run("missing user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.GetUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
		_, err = s.GetUserByID(ctx, uuid.NewString())
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
		require.ErrorIs(t, s.UpdatePasswordHash(ctx, uuid.NewString(), "x"), deskauth.ErrRecordNotFound)
	})

	t.Run("update hash and verify email", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()

		u, err := s.CreateUser(ctx, deskauth.CreateUserInput{ID: uuid.NewString(), Email: "v@example.com", PasswordHash: "old", CreatedAt: now})
		require.NoError(t, err)

		require.NoError(t, s.UpdatePasswordHash(ctx, u.ID, "new"))
		require.NoError(t, s.MarkEmailVerified(ctx, u.ID, now))
		require.NoError(t, s.MarkEmailVerified(ctx, u.ID, now.Add(time.Hour)))

		got, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "new", got.PasswordHash)
		require.NotNil(t, got.EmailVerifiedAt)
		assert.True(t, got.EmailVerifiedAt.Equal(now), "first verification time is kept")
	})
}

// RunAttemptStore exercises deskauth.AttemptStore.
func RunAttemptStore(t *testing.T, newStore func(t *testing.T) deskauth.AttemptStore) {
	t.Run("count failures inside window", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()

		record := func(email string, success bool, at time.Time) {
			require.NoError(t, s.RecordAttempt(ctx, deskauth.AuthAttempt{
				ID: uuid.NewString(), Email: email, Success: success, CreatedAt: at,
			}))
		}
		record("Eve@Example.com", false, now.Add(-20*time.Minute))
		record("eve@example.com", false, now.Add(-10*time.Minute))
		record("EVE@example.com", false, now.Add(-time.Minute))
		record("eve@example.com", true, now)
		record("other@example.com", false, now)

		n, err := s.CountFailuresSince(ctx, "eve@EXAMPLE.com", now.Add(-15*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.CountFailuresSince(ctx, "eve@example.com", now.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n, "window start is inclusive")

		n, err = s.CountFailuresSince(ctx, "nobody@example.com", now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("list newest first", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()
		userID := uuid.NewString()

		for i := 0; i < 5; i++ {
			require.NoError(t, s.RecordAttempt(ctx, deskauth.AuthAttempt{
				ID: uuid.NewString(), Email: "u@example.com", UserID: userID,
				Success: i%2 == 0, IP: "10.0.0.1", CreatedAt: now.Add(time.Duration(i) * time.Second),
			}))
		}
		require.NoError(t, s.RecordAttempt(ctx, deskauth.AuthAttempt{
			ID: uuid.NewString(), Email: "x@example.com", UserID: uuid.NewString(), CreatedAt: now,
		}))

		got, err := s.ListAttempts(ctx, userID, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[0].CreatedAt.Equal(now.Add(4*time.Second)))
		assert.True(t, got[2].CreatedAt.Equal(now.Add(2*time.Second)))
		assert.Equal(t, "10.0.0.1", got[0].IP)
		for _, a := range got {
			assert.Equal(t, userID, a.UserID)
		}
	})

	t.Run("unknown email failures keep every field", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()

		first := deskauth.AuthAttempt{
			ID: uuid.NewString(), Email: "Ghost@Example.com", Success: false,
			IP: "203.0.113.7", UserAgent: "curl/8.5", CreatedAt: now.Add(-time.Minute),
		}
		second := deskauth.AuthAttempt{
			ID: uuid.NewString(), Email: "ghost@example.com", Success: false,
			IP: "203.0.113.8", UserAgent: "python-requests/2.31", CreatedAt: now,
		}
		require.NoError(t, s.RecordAttempt(ctx, first))
		require.NoError(t, s.RecordAttempt(ctx, second))
		require.NoError(t, s.RecordAttempt(ctx, deskauth.AuthAttempt{
			ID: uuid.NewString(), Email: "someone@example.com", CreatedAt: now,
		}))

		got, err := s.ListAttemptsByEmail(ctx, "GHOST@example.com", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, second.ID, got[0].ID)
		assert.Equal(t, "ghost@example.com", got[0].Email)
		assert.Equal(t, "203.0.113.8", got[0].IP)
		assert.Equal(t, "python-requests/2.31", got[0].UserAgent)
		assert.True(t, got[0].CreatedAt.Equal(now))

		assert.Equal(t, first.ID, got[1].ID)
		assert.Equal(t, "Ghost@Example.com", got[1].Email)
		assert.Equal(t, "203.0.113.7", got[1].IP)
		assert.Equal(t, "curl/8.5", got[1].UserAgent)
		assert.False(t, got[1].Success)
		assert.Empty(t, got[1].UserID)

		n, err := s.CountFailuresSince(ctx, "ghost@example.com", now.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err = s.ListAttemptsByEmail(ctx, "ghost@example.com", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, second.ID, got[0].ID)
	})
}

// RunTokenStore exercises deskauth.TokenStore.
func RunTokenStore(t *testing.T, newStore func(t *testing.T) deskauth.TokenStore) {
	t.Run("refresh token lifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()
		userID := uuid.NewString()

		live := deskauth.RefreshToken{
			ID: uuid.NewString(), UserID: userID, TokenHash: strings.Repeat("a", 64),
			UserAgent: "curl", IP: "127.0.0.1", IssuedAt: now, ExpiresAt: now.Add(time.Hour),
		}
		require.NoError(t, s.CreateRefreshToken(ctx, live))

		got, err := s.GetLiveRefreshToken(ctx, live.TokenHash, now)
		require.NoError(t, err)
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, "curl", got.UserAgent)

		_, err = s.GetLiveRefreshToken(ctx, live.TokenHash, now.Add(2*time.Hour))
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound, "expired tokens are not live")

		n, err := s.RevokeRefreshToken(ctx, live.TokenHash, now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = s.RevokeRefreshToken(ctx, live.TokenHash, now)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = s.GetLiveRefreshToken(ctx, live.TokenHash, now)
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)

		n, err = s.RevokeRefreshToken(ctx, strings.Repeat("f", 64), now)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("revoke every token of a user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()
		userID, otherID := uuid.NewString(), uuid.NewString()

		for i, owner := range []string{userID, userID, userID, otherID} {
			require.NoError(t, s.CreateRefreshToken(ctx, deskauth.RefreshToken{
				ID: uuid.NewString(), UserID: owner, TokenHash: strings.Repeat(string(rune('a'+i)), 64),
				IssuedAt: now, ExpiresAt: now.Add(time.Hour),
			}))
		}
		_, err := s.RevokeRefreshToken(ctx, strings.Repeat("a", 64), now)
		require.NoError(t, err)

		n, err := s.RevokeUserRefreshTokens(ctx, userID, now)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = s.GetLiveRefreshToken(ctx, strings.Repeat("b", 64), now)
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
		_, err = s.GetLiveRefreshToken(ctx, strings.Repeat("d", 64), now)
		require.NoError(t, err, "other users keep their sessions")
	})

	t.Run("single-use token is consumed once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()

		tok := deskauth.SingleUseToken{
			ID: uuid.NewString(), UserID: uuid.NewString(), Kind: deskauth.TokenPasswordReset,
			TokenHash: strings.Repeat("1", 64), ExpiresAt: now.Add(30 * time.Minute), CreatedAt: now,
		}
		require.NoError(t, s.CreateSingleUseToken(ctx, tok))

		_, err := s.ConsumeSingleUseToken(ctx, deskauth.TokenEmailVerification, tok.TokenHash, now)
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound, "wrong kind")

		got, err := s.ConsumeSingleUseToken(ctx, deskauth.TokenPasswordReset, tok.TokenHash, now)
		require.NoError(t, err)
		assert.Equal(t, tok.UserID, got.UserID)
		require.NotNil(t, got.UsedAt)

		_, err = s.ConsumeSingleUseToken(ctx, deskauth.TokenPasswordReset, tok.TokenHash, now)
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
	})

	t.Run("expired single-use token", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()

		tok := deskauth.SingleUseToken{
			ID: uuid.NewString(), UserID: uuid.NewString(), Kind: deskauth.TokenEmailVerification,
			TokenHash: strings.Repeat("2", 64), ExpiresAt: now.Add(time.Minute), CreatedAt: now,
		}
		require.NoError(t, s.CreateSingleUseToken(ctx, tok))

		_, err := s.ConsumeSingleUseToken(ctx, deskauth.TokenEmailVerification, tok.TokenHash, now.Add(time.Minute))
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
		_, err = s.ConsumeSingleUseToken(ctx, deskauth.TokenEmailVerification, strings.Repeat("3", 64), now)
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
	})

	t.Run("concurrent consumption has one winner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()

		tok := deskauth.SingleUseToken{
			ID: uuid.NewString(), UserID: uuid.NewString(), Kind: deskauth.TokenEmailVerification,
			TokenHash: strings.Repeat("4", 64), ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}
		require.NoError(t, s.CreateSingleUseToken(ctx, tok))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.ConsumeSingleUseToken(ctx, deskauth.TokenEmailVerification, tok.TokenHash, now); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("totp secret", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()
		userID := uuid.NewString()

		_, err := s.GetTOTPSecret(ctx, userID)
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
		require.ErrorIs(t, s.EnableTOTPSecret(ctx, userID, now), deskauth.ErrRecordNotFound)

		require.NoError(t, s.SaveTOTPSecret(ctx, deskauth.TOTPSecret{UserID: userID, Secret: "first", CreatedAt: now}))
		require.NoError(t, s.SaveTOTPSecret(ctx, deskauth.TOTPSecret{UserID: userID, Secret: "second", CreatedAt: now}))

		got, err := s.GetTOTPSecret(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "second", got.Secret)
		assert.False(t, got.Enabled)

		require.NoError(t, s.EnableTOTPSecret(ctx, userID, now))
		got, err = s.GetTOTPSecret(ctx, userID)
		require.NoError(t, err)
		assert.True(t, got.Enabled)
		require.NotNil(t, got.VerifiedAt)

		require.NoError(t, s.DeleteTOTPSecret(ctx, userID))
		require.NoError(t, s.DeleteTOTPSecret(ctx, userID))
		_, err = s.GetTOTPSecret(ctx, userID)
		require.ErrorIs(t, err, deskauth.ErrRecordNotFound)
	})

	t.Run("recovery codes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base()
		userID := uuid.NewString()

		require.NoError(t, s.ReplaceRecoveryCodes(ctx, userID, []string{"h1", "h2"}, now))

		ok, err := s.ConsumeRecoveryCode(ctx, userID, "h1", now)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.ConsumeRecoveryCode(ctx, userID, "h1", now)
		require.NoError(t, err)
		assert.False(t, ok, "codes are single use")
		ok, err = s.ConsumeRecoveryCode(ctx, uuid.NewString(), "h2", now)
		require.NoError(t, err)
		assert.False(t, ok, "codes are scoped to their user")

		require.NoError(t, s.ReplaceRecoveryCodes(ctx, userID, []string{"h3"}, now))
		ok, err = s.ConsumeRecoveryCode(ctx, userID, "h2", now)
		require.NoError(t, err)
		assert.False(t, ok, "regeneration drops unused codes")
		ok, err = s.ConsumeRecoveryCode(ctx, userID, "h1", now)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = s.ConsumeRecoveryCode(ctx, userID, "h3", now)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
