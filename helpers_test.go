package deskauth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/store/memory"
)

const goodPassword = "s3cretpass"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mailbox struct {
	mu     sync.Mutex
	verify map[string][]string
	reset  map[string][]string
}

func newMailbox() *mailbox {
	return &mailbox{verify: map[string][]string{}, reset: map[string][]string{}}
}

func (m *mailbox) SendVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verify[email] = append(m.verify[email], token)
	return nil
}

func (m *mailbox) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset[email] = append(m.reset[email], token)
	return nil
}

func (m *mailbox) lastVerification(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.verify[email]; len(l) > 0 {
		return l[len(l)-1]
	}
	return ""
}

func (m *mailbox) lastReset(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.reset[email]; len(l) > 0 {
		return l[len(l)-1]
	}
	return ""
}

type captchaFunc func(proof string) bool

func (f captchaFunc) VerifyCaptcha(_ context.Context, proof, _ string) (bool, error) {
	return f(proof), nil
}

type harness struct {
	engine *deskauth.Engine
	store  *memory.Store
	mail   *mailbox
	clock  *clock
}

func testConfig() deskauth.Config {
	cfg := deskauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("k", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false
	return cfg
}

func newHarness(t *testing.T, mutate func(*deskauth.Config, *deskauth.Builder)) *harness {
	t.Helper()

	h := &harness{store: memory.New(), mail: newMailbox(), clock: newClock()}
	cfg := testConfig()
	b := deskauth.New()
	if mutate != nil {
		mutate(&cfg, b)
	}

	engine, err := b.WithConfig(cfg).WithStore(h.store).WithMailer(h.mail).WithClock(h.clock.Now).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *harness) register(t *testing.T, email string) string {
	t.Helper()
	id, err := h.engine.Register(context.Background(), deskauth.RegisterInput{
		Email:          email,
		Password:       goodPassword,
		AcceptedPolicy: true,
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return id
}

func (h *harness) login(t *testing.T, email string) deskauth.LoginResult {
	t.Helper()
	res, err := h.engine.Login(context.Background(), deskauth.LoginInput{Email: email, Password: goodPassword})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res
}
