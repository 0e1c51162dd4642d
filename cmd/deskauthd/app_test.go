package main

import (
	"bytes"
	"context"
	"database/sql"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/deskauth/internal/config"
	"github.com/MrEthical07/deskauth/internal/logging"
	"github.com/MrEthical07/deskauth/store/memory"
	"github.com/MrEthical07/deskauth/store/postgres"
	"github.com/MrEthical07/deskauth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

// syncBuffer is written by the audit dispatcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, args []string, vars map[string]string) (*App, *syncBuffer) {
	t.Helper()
	if vars == nil {
		vars = map[string]string{}
	}
	vars[config.EnvJWTSecret] = testSecret

	out := &syncBuffer{}
	app, err := NewApp(context.Background(), args, env(vars), out)
	require.NoError(t, err)
	return app, out
}

func TestAppServesAPI(t *testing.T) {
	app, out := newTestApp(t, nil, nil)
	defer app.close()

	srv := httptest.NewServer(app.server.Handler)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := `{"email":"agent@example.com","password":"s3cretpass","acceptedPolicy":true}`
	res, err = http.Post(srv.URL+"/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	assert.Contains(t, out.String(), "verification mail issued")
	assert.Contains(t, out.String(), "security posture")
	assert.NotContains(t, out.String(), "s3cretpass")
}

func TestEngineConfig(t *testing.T) {
	var cfg config.Config
	cfg.LoadDefaults()
	cfg.JWTSecret = testSecret
	cfg.AccessTTL = 5 * time.Minute
	cfg.TOTPKeyHex = strings.Repeat("ab", 32)

	ecfg, err := engineConfig(&cfg)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ecfg.JWT.AccessTTL)
	assert.Len(t, ecfg.TOTP.SealKey, 32)
	assert.True(t, ecfg.Metrics.Enabled)

	cfg.TOTPKeyHex = "not-hex"
	_, err = engineConfig(&cfg)
	assert.ErrorContains(t, err, config.EnvTOTPKey)
}

func TestServeStopsOnCancel(t *testing.T) {
	app, _ := newTestApp(t, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestOpenBackendsMemory(t *testing.T) {
	var cfg config.Config
	cfg.LoadDefaults()

	b, err := openBackends(context.Background(), &cfg, logging.Nop{})
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &memory.Store{}, b.users)
	assert.Same(t, b.users, b.tokens)
	assert.Same(t, b.users, b.tickets)
}

func TestOpenBackendsPostgresAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	orig := openDB
	openDB = func(context.Context, string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = orig })

	var cfg config.Config
	cfg.LoadDefaults()
	cfg.UserBackend = config.BackendPostgres
	cfg.TokenBackend = config.BackendRedis
	cfg.RedisAddr = mr.Addr()
	cfg.MigrateOnStart = false

	b, err := openBackends(context.Background(), &cfg, logging.Nop{})
	require.NoError(t, err)

	assert.IsType(t, &postgres.Store{}, b.users)
	assert.IsType(t, &postgres.Store{}, b.tickets)
	assert.IsType(t, &redisstore.Store{}, b.tokens)
	assert.IsType(t, &redisstore.Store{}, b.attempts)

	require.NoError(t, b.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenBackendsRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	var cfg config.Config
	cfg.LoadDefaults()
	cfg.TokenBackend = config.BackendRedis
	cfg.RedisAddr = addr

	_, err := openBackends(context.Background(), &cfg, logging.Nop{})
	assert.ErrorContains(t, err, "connect redis")
}

func TestNewLoggerFollowsEnvironment(t *testing.T) {
	var cfg config.Config
	cfg.LoadDefaults()

	var buf bytes.Buffer
	newLogger(&cfg, &buf).Info(context.Background(), "started", "addr", ":8080")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())
	assert.Contains(t, buf.String(), `"msg":"started"`)

	buf.Reset()
	cfg.Environment = config.EnvironmentDevelopment
	cfg.LogLevel = "debug"
	newLogger(&cfg, &buf).Debug(context.Background(), "started")
	assert.False(t, strings.HasPrefix(buf.String(), "{"), buf.String())
	assert.Contains(t, buf.String(), "DEBUG")
}
