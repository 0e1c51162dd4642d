package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/deskauth"
)

// ---- refresh tokens ----

func (s *Store) CreateRefreshToken(ctx context.Context, t deskauth.RefreshToken) error {
	query :=
		`INSERT INTO refresh_tokens (id, user_id, token_hash, user_agent, ip, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.TokenHash, t.UserAgent, t.IP, t.IssuedAt, t.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return deskauth.ErrRecordExists
		}
		return dbError(err)
	}
	return nil
}

func (s *Store) GetLiveRefreshToken(ctx context.Context, hash string, now time.Time) (deskauth.RefreshToken, error) {
	query :=
		`SELECT id, user_id, user_agent, ip, issued_at, expires_at FROM refresh_tokens
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2`

	t := deskauth.RefreshToken{TokenHash: hash}
	err := s.db.QueryRowContext(ctx, query, hash, now).
		Scan(&t.ID, &t.UserID, &t.UserAgent, &t.IP, &t.IssuedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deskauth.RefreshToken{}, deskauth.ErrRecordNotFound
		}
		return deskauth.RefreshToken{}, dbError(err)
	}
	t.IssuedAt = t.IssuedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	return t, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, hash string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE token_hash = $1 AND revoked_at IS NULL`, hash, now)
	if err != nil {
		return 0, dbError(err)
	}
	return rowsAffected(res)
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, now)
	if err != nil {
		return 0, dbError(err)
	}
	return rowsAffected(res)
}

// ---- single-use tokens ----

func (s *Store) CreateSingleUseToken(ctx context.Context, t deskauth.SingleUseToken) error {
	query :=
		`INSERT INTO single_use_tokens (id, user_id, kind, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.UserID, string(t.Kind), t.TokenHash, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return deskauth.ErrRecordExists
		}
		return dbError(err)
	}
	return nil
}

// ConsumeSingleUseToken is one conditional UPDATE; a concurrent redemption
// that loses the row lock re-evaluates used_at and matches nothing.
func (s *Store) ConsumeSingleUseToken(ctx context.Context, kind deskauth.TokenKind, hash string, now time.Time) (deskauth.SingleUseToken, error) {
	query :=
		`UPDATE single_use_tokens SET used_at = $3
		 WHERE token_hash = $1 AND kind = $2 AND used_at IS NULL AND expires_at > $3
		 RETURNING id, user_id, expires_at, created_at`

	t := deskauth.SingleUseToken{Kind: kind, TokenHash: hash}
	err := s.db.QueryRowContext(ctx, query, hash, string(kind), now).
		Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deskauth.SingleUseToken{}, deskauth.ErrRecordNotFound
		}
		return deskauth.SingleUseToken{}, dbError(err)
	}
	used := now
	t.UsedAt = &used
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

// ---- second factor ----

func (s *Store) SaveTOTPSecret(ctx context.Context, sec deskauth.TOTPSecret) error {
	query :=
		`INSERT INTO totp_secrets (user_id, secret, enabled, verified_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET secret = EXCLUDED.secret, enabled = EXCLUDED.enabled,
		     verified_at = EXCLUDED.verified_at, created_at = EXCLUDED.created_at`

	_, err := s.db.ExecContext(ctx, query,
		sec.UserID, sec.Secret, sec.Enabled, nullTime(sec.VerifiedAt), sec.CreatedAt)
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (s *Store) GetTOTPSecret(ctx context.Context, userID string) (deskauth.TOTPSecret, error) {
	query := `SELECT secret, enabled, verified_at, created_at FROM totp_secrets WHERE user_id = $1`

	sec := deskauth.TOTPSecret{UserID: userID}
	var verified sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&sec.Secret, &sec.Enabled, &verified, &sec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deskauth.TOTPSecret{}, deskauth.ErrRecordNotFound
		}
		return deskauth.TOTPSecret{}, dbError(err)
	}
	sec.VerifiedAt = timePtr(verified)
	sec.CreatedAt = sec.CreatedAt.UTC()
	return sec, nil
}

func (s *Store) EnableTOTPSecret(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE totp_secrets SET enabled = TRUE, verified_at = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return dbError(err)
	}
	return expectOne(res)
}

func (s *Store) DeleteTOTPSecret(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM totp_secrets WHERE user_id = $1`, userID); err != nil {
		return dbError(err)
	}
	return nil
}

func (s *Store) ReplaceRecoveryCodes(ctx context.Context, userID string, hashes []string, now time.Time) error {
	return s.withTx(ctx, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM totp_recovery_codes WHERE user_id = $1 AND used_at IS NULL`, userID); err != nil {
			return dbError(err)
		}
		for _, h := range hashes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO totp_recovery_codes (user_id, code_hash, created_at) VALUES ($1, $2, $3)
				 ON CONFLICT (user_id, code_hash) DO NOTHING`, userID, h, now)
			if err != nil {
				return dbError(err)
			}
		}
		return nil
	})
}

func (s *Store) ConsumeRecoveryCode(ctx context.Context, userID, hash string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE totp_recovery_codes SET used_at = $3
		 WHERE user_id = $1 AND code_hash = $2 AND used_at IS NULL`, userID, hash, now)
	if err != nil {
		return false, dbError(err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
