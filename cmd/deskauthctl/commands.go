package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/internal/config"
	"github.com/MrEthical07/deskauth/password"
	"github.com/MrEthical07/deskauth/store/postgres"
	"github.com/google/uuid"
	"golang.org/x/term"
)

// Test seams.
var (
	readPassword = term.ReadPassword
	openDB       = postgres.Open
	migrate      = postgres.Migrate
)

func defaultDSN(getenv func(string) string) string {
	if v := strings.TrimSpace(getenv(envDatabaseDSN)); v != "" {
		return v
	}
	var c config.Config
	c.LoadDefaults()
	return c.DatabaseDSN
}

func migrateCmd(ctx context.Context, args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dsn := fs.String("d", defaultDSN(getenv), "database DSN")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDB(ctx, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrate(ctx, db); err != nil {
		return err
	}
	fmt.Fprintln(out, "migrations applied")
	return nil
}

func createAdminCmd(ctx context.Context, args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dsn := fs.String("d", defaultDSN(getenv), "database DSN")
	email := fs.String("email", "", "account email")
	role := fs.String("role", deskauth.DefaultConfig().Roles.Admin, "role to grant")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr := strings.ToLower(strings.TrimSpace(*email))
	if addr == "" || !strings.Contains(addr, "@") {
		return errors.New("-email is required")
	}

	plain, err := promptPassword(out)
	if err != nil {
		return err
	}
	if err := password.CheckStrength(plain, password.DefaultMinLength); err != nil {
		return err
	}

	pc := deskauth.DefaultConfig().Password
	hasher, err := password.New(password.Config{
		Memory:      pc.Memory,
		Time:        pc.Time,
		Parallelism: pc.Parallelism,
		SaltLength:  pc.SaltLength,
		KeyLength:   pc.KeyLength,
	})
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(plain)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now().UTC()
	user, err := postgres.New(db).CreateUser(ctx, deskauth.CreateUserInput{
		ID:               uuid.NewString(),
		Email:            addr,
		PasswordHash:     hash,
		Active:           true,
		EmailVerifiedAt:  &now,
		Roles:            []string{*role},
		FirstName:        *first,
		LastName:         *last,
		AcceptedPolicyAt: now,
		CreatedAt:        now,
	})
	if errors.Is(err, deskauth.ErrRecordExists) {
		return fmt.Errorf("an account for %s already exists", addr)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "created %s (%s) with role %s\n", user.Email, user.ID, *role)
	return nil
}

// promptPassword reads the password twice without echo.
func promptPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())

	fmt.Fprint(out, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
