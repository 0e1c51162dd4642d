package totp

import (
	"encoding/base32"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func mustManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func mustSecret(t *testing.T, m *Manager) string {
	t.Helper()
	key, err := m.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return key.Secret()
}

func TestRFC6238Vectors(t *testing.T) {
	vectors := []struct {
		algorithm string
		key       string
		codes     map[int64]string
	}{
		{"SHA1", "12345678901234567890", map[int64]string{
			59: "94287082", 1111111109: "07081804", 1111111111: "14050471",
			1234567890: "89005924", 2000000000: "69279037", 20000000000: "65353130",
		}},
		{"SHA256", "12345678901234567890123456789012", map[int64]string{
			59: "46119246", 1111111109: "68084774", 1111111111: "67062674",
			1234567890: "91819424", 2000000000: "90698825", 20000000000: "77737706",
		}},
		{"SHA512", "1234567890123456789012345678901234567890123456789012345678901234", map[int64]string{
			59: "90693936", 1111111109: "25091201", 1111111111: "99943326",
			1234567890: "93441116", 2000000000: "38618901", 20000000000: "47863826",
		}},
	}

	for _, v := range vectors {
		m := mustManager(t, Config{Digits: 8, Period: 30, Algorithm: v.algorithm})
		secret := base32.StdEncoding.EncodeToString([]byte(v.key))
		for ts, want := range v.codes {
			got, err := m.Code(secret, time.Unix(ts, 0))
			if err != nil || got != want {
				t.Fatalf("%s code at t=%d = %q (err %v), want %q", v.algorithm, ts, got, err, want)
			}
			ok, err := m.Verify(secret, want, time.Unix(ts, 0))
			if err != nil || !ok {
				t.Fatalf("%s vector failed at t=%d, ok=%v err=%v", v.algorithm, ts, ok, err)
			}
		}
	}
}

func TestVerifySkewWindow(t *testing.T) {
	m := mustManager(t, Config{Issuer: "Support Desk", Skew: 1})
	secret := mustSecret(t, m)

	now := time.Unix(1_700_000_000, 0)
	code, err := m.Code(secret, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	ok, err := m.Verify(secret, code, now)
	if err != nil || !ok {
		t.Fatalf("expected previous step to verify within skew, ok=%v err=%v", ok, err)
	}

	stale, err := m.Code(secret, now.Add(-90*time.Second))
	if err != nil {
		t.Fatalf("Code: %v", err)
	}
	ok, err = m.Verify(secret, stale, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok && stale != code {
		t.Fatal("expected code three steps old to be rejected")
	}
}

func TestVerifyWithoutSkewRejectsPreviousStep(t *testing.T) {
	m := mustManager(t, Config{Issuer: "Support Desk", Skew: 0})
	secret := mustSecret(t, m)

	now := time.Unix(1_700_000_010, 0)
	current, _ := m.Code(secret, now)
	previous, _ := m.Code(secret, now.Add(-30*time.Second))

	if ok, err := m.Verify(secret, current, now); err != nil || !ok {
		t.Fatalf("current code rejected, ok=%v err=%v", ok, err)
	}
	if ok, _ := m.Verify(secret, previous, now); ok && previous != current {
		t.Fatal("expected previous step to be rejected with zero skew")
	}
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	m := mustManager(t, Config{Issuer: "Support Desk"})
	secret := mustSecret(t, m)
	now := time.Now()

	for _, code := range []string{"", "12345", "1234567", "abcdef", "12 456"} {
		ok, err := m.Verify(secret, code, now)
		if err != nil || ok {
			t.Fatalf("expected %q to be rejected without error, ok=%v err=%v", code, ok, err)
		}
	}

	if _, err := m.Verify("not base32 !", "123456", now); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
	if _, err := m.Verify("  ", "123456", now); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret for blank secret, got %v", err)
	}
}

func TestGenerateKeyURL(t *testing.T) {
	m := mustManager(t, Config{Issuer: "Support Desk", Digits: 8, Period: 60, Algorithm: "SHA256"})
	key, err := m.Generate("alice@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	uri := key.URL()
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("unexpected uri %q", uri)
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		t.Fatalf("parse uri: %v", err)
	}
	q := parsed.Query()
	if q.Get("secret") != key.Secret() || q.Get("issuer") != "Support Desk" {
		t.Fatalf("unexpected query %v", q)
	}
	if q.Get("digits") != "8" || q.Get("period") != "60" || q.Get("algorithm") != "SHA256" {
		t.Fatalf("config not carried into uri: %v", q)
	}
	if key.AccountName() != "alice@example.com" {
		t.Fatalf("account = %q", key.AccountName())
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(key.Secret())
	if err != nil || len(raw) != secretBytes {
		t.Fatalf("secret decodes to %d bytes, err %v", len(raw), err)
	}
}

func TestGenerateRequiresIssuer(t *testing.T) {
	m := mustManager(t, Config{})
	if _, err := m.Generate("alice@example.com"); err == nil {
		t.Fatal("expected missing issuer to be rejected")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Digits: 4}); err == nil {
		t.Fatal("expected 4 digits to be rejected")
	}
	if _, err := New(Config{Algorithm: "MD5"}); err == nil {
		t.Fatal("expected unsupported algorithm to be rejected")
	}
}
