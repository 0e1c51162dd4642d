package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testHMACKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newHMACManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    testHMACKey,
		Issuer:        "deskauth",
		Audience:      "portal",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestSignVerifyRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newHMACManager(t, clock)

	token, err := m.Sign(Identity{
		Subject:      "u1",
		Email:        "alice@example.com",
		Roles:        []string{"customer", "technician"},
		SecondFactor: true,
	}, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.Subject != "u1" || id.Email != "alice@example.com" || !id.SecondFactor {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if len(id.Roles) != 2 || id.Roles[1] != "technician" {
		t.Fatalf("unexpected roles: %v", id.Roles)
	}
	if !id.ExpiresAt.Equal(clock.now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", id.ExpiresAt)
	}
}

func TestVerifyExpiredReturnsTypedFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newHMACManager(t, clock)

	token, err := m.Sign(Identity{Subject: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = m.Verify(token)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrExpired to wrap ErrInvalid, got %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newHMACManager(t, clock)

	token, err := m.Sign(Identity{Subject: "u1", Roles: []string{"customer"}}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parts := strings.Split(token, ".")
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, identityClaims{
		Roles: []string{"admin"},
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "deskauth",
			Audience:  gjwt.ClaimStrings{"portal"},
			ExpiresAt: gjwt.NewNumericDate(clock.now.Add(time.Minute)),
		},
	}).SignedString([]byte("another-key-another-key-another-k"))
	if err != nil {
		t.Fatalf("forge: %v", err)
	}
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	for _, candidate := range []string{forged, spliced, "", "not.a.token", token + "x"} {
		if _, err := m.Verify(candidate); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %q, got %v", candidate, err)
		}
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	hs, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, identityClaims{
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString(testHMACKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(hs); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}

	ok, err := m.Sign(Identity{Subject: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("sign ed25519: %v", err)
	}
	if _, err := m.Verify(ok); err != nil {
		t.Fatalf("expected ed25519 token to verify: %v", err)
	}
}

func TestVerifyKeyRotation(t *testing.T) {
	pubA, privA, _ := ed25519.GenerateKey(rand.Reader)
	pubB, privB, _ := ed25519.GenerateKey(rand.Reader)
	verifyKeys := map[string][]byte{"a": pubA, "b": pubB}

	old, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: privA, KeyID: "a", VerifyKeys: verifyKeys})
	if err != nil {
		t.Fatalf("new manager a: %v", err)
	}
	current, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: privB, KeyID: "b", VerifyKeys: verifyKeys})
	if err != nil {
		t.Fatalf("new manager b: %v", err)
	}

	token, err := old.Sign(Identity{Subject: "u1"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := current.Verify(token); err != nil {
		t.Fatalf("expected token signed with previous key to verify: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short hmac key to be rejected")
	}
	if _, err := NewManager(Config{SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected ed25519 without keys to be rejected")
	}
	if _, err := NewManager(Config{SigningMethod: "rs256", PrivateKey: testHMACKey}); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}
	if _, err := NewManager(Config{PrivateKey: testHMACKey, Leeway: time.Hour}); err == nil {
		t.Fatal("expected excessive leeway to be rejected")
	}
}

func TestSignRequiresSubjectAndTTL(t *testing.T) {
	m := newHMACManager(t, &fakeClock{now: time.Now()})
	if _, err := m.Sign(Identity{}, time.Minute); err == nil {
		t.Fatal("expected empty subject to be rejected")
	}
	if _, err := m.Sign(Identity{Subject: "u1"}, 0); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
}

// FuzzVerify: arbitrary token strings must never panic.
func FuzzVerify(f *testing.F) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: testHMACKey, Issuer: "fuzz"})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := m.Sign(Identity{Subject: "u1"}, time.Minute)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, token string) {
		id, err := m.Verify(token)
		if err == nil && id.Subject != "u1" {
			t.Fatalf("unexpected identity verified from %q: %+v", token, id)
		}
	})
}
