package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/deskauth"
)

const userColumns = `id, email, password_hash, active, email_verified_at, roles, first_name, last_name, phone, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (deskauth.User, error) {
	var (
		u        deskauth.User
		verified sql.NullTime
		roles    string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Active, &verified, &roles,
		&u.FirstName, &u.LastName, &u.Phone, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return deskauth.User{}, deskauth.ErrRecordNotFound
		}
		return deskauth.User{}, dbError(err)
	}
	u.EmailVerifiedAt = timePtr(verified)
	u.Roles = splitRoles(roles)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, in deskauth.CreateUserInput) (deskauth.User, error) {
	query :=
		`INSERT INTO users (id, email, password_hash, active, email_verified_at, roles, first_name, last_name, phone, accepted_policy_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var accepted sql.NullTime
	if !in.AcceptedPolicyAt.IsZero() {
		accepted = sql.NullTime{Time: in.AcceptedPolicyAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		in.ID, in.Email, in.PasswordHash, in.Active, nullTime(in.EmailVerifiedAt), joinRoles(in.Roles),
		in.FirstName, in.LastName, in.Phone, accepted, in.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return deskauth.User{}, deskauth.ErrRecordExists
		}
		return deskauth.User{}, dbError(err)
	}

	return deskauth.User{
		ID:              in.ID,
		Email:           in.Email,
		PasswordHash:    in.PasswordHash,
		Active:          in.Active,
		EmailVerifiedAt: in.EmailVerifiedAt,
		Roles:           append([]string(nil), in.Roles...),
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Phone:           in.Phone,
		CreatedAt:       in.CreatedAt,
	}, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (deskauth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (deskauth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return dbError(err)
	}
	return expectOne(res)
}

// MarkEmailVerified keeps the first verification time.
func (s *Store) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email_verified_at = COALESCE(email_verified_at, $2) WHERE id = $1`, userID, at)
	if err != nil {
		return dbError(err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return deskauth.ErrRecordNotFound
	}
	return nil
}
