package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(answers) {
			return nil, errors.New("no more input")
		}
		i++
		return []byte(answers[i-1]), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

func stubDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	orig := openDB
	openDB = func(context.Context, string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = orig })
	return mock
}

func TestCreateAdmin(t *testing.T) {
	stubPasswords(t, "s3cretpass", "s3cretpass")
	mock := stubDB(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "root@example.com", sqlmock.AnyArg(), true, sqlmock.AnyArg(), "admin",
			"Ada", "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"create-admin", "-email", " Root@Example.com ", "-first", "Ada"}, noEnv, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "created root@example.com")
	assert.NotContains(t, stdout.String(), "s3cretpass")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAdminDuplicate(t *testing.T) {
	stubPasswords(t, "s3cretpass", "s3cretpass")
	mock := stubDB(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectClose()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"create-admin", "-email", "root@example.com"}, noEnv, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "already exists")
}

func TestCreateAdminRejectsInput(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		answers []string
		want    string
	}{
		{"missing email", []string{"create-admin"}, nil, "-email is required"},
		{"mismatch", []string{"create-admin", "-email", "a@example.com"}, []string{"s3cretpass", "other1234"}, "do not match"},
		{"weak", []string{"create-admin", "-email", "a@example.com"}, []string{"short", "short"}, "too short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubPasswords(t, tt.answers...)
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, noEnv, &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}

func TestMigrate(t *testing.T) {
	mock := stubDB(t)
	mock.ExpectClose()

	var gotDSN string
	origOpen := openDB
	openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return origOpen(ctx, dsn)
	}

	called := false
	origMigrate := migrate
	migrate = func(context.Context, *sql.DB) error {
		called = true
		return nil
	}
	t.Cleanup(func() { migrate = origMigrate })

	env := func(k string) string {
		if k == envDatabaseDSN {
			return "postgres://ops@db/deskauth"
		}
		return ""
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"migrate"}, env, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	assert.True(t, called)
	assert.Equal(t, "postgres://ops@db/deskauth", gotDSN)
	assert.Contains(t, stdout.String(), "migrations applied")
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"frobnicate"}, noEnv, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage")
	assert.Equal(t, 2, run(context.Background(), nil, noEnv, &stdout, &stderr))
}
