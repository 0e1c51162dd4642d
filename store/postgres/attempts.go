package postgres

import (
	"context"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/google/uuid"
)

const defaultListLimit = 100

func (s *Store) RecordAttempt(ctx context.Context, a deskauth.AuthAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	query :=
		`INSERT INTO auth_attempts (id, email, user_id, success, ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Email, nullString(a.UserID), a.Success, a.IP, a.UserAgent, a.CreatedAt)
	if err != nil {
		return dbError(err)
	}
	return nil
}

func (s *Store) CountFailuresSince(ctx context.Context, email string, since time.Time) (int, error) {
	query :=
		`SELECT count(*) FROM auth_attempts
		 WHERE lower(email) = lower($1) AND NOT success AND created_at >= $2`

	var n int
	if err := s.db.QueryRowContext(ctx, query, email, since).Scan(&n); err != nil {
		return 0, dbError(err)
	}
	return n, nil
}

func (s *Store) ListAttempts(ctx context.Context, userID string, limit int) ([]deskauth.AuthAttempt, error) {
	query :=
		`SELECT id, email, user_id, success, ip, user_agent, created_at FROM auth_attempts
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`
	return s.listAttempts(ctx, query, userID, limit)
}

func (s *Store) ListAttemptsByEmail(ctx context.Context, email string, limit int) ([]deskauth.AuthAttempt, error) {
	query :=
		`SELECT id, email, user_id, success, ip, user_agent, created_at FROM auth_attempts
		 WHERE lower(email) = lower($1)
		 ORDER BY created_at DESC
		 LIMIT $2`
	return s.listAttempts(ctx, query, email, limit)
}

func (s *Store) listAttempts(ctx context.Context, query, arg string, limit int) ([]deskauth.AuthAttempt, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, query, arg, limit)
	if err != nil {
		return nil, dbError(err)
	}
	defer rows.Close()

	var out []deskauth.AuthAttempt
	for rows.Next() {
		var a deskauth.AuthAttempt
		var uid *string
		if err := rows.Scan(&a.ID, &a.Email, &uid, &a.Success, &a.IP, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, dbError(err)
		}
		if uid != nil {
			a.UserID = *uid
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err)
	}
	return out, nil
}
