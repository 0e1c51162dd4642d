package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, BackendMemory, c.UserBackend)
	assert.Equal(t, BackendMemory, c.TokenBackend)
	assert.Equal(t, 15*time.Minute, c.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, c.RefreshTTL)
	assert.Equal(t, "access_token", c.AuthCookie)
	assert.True(t, c.MigrateOnStart)
}

func TestLoadRequiresSecret(t *testing.T) {
	_, err := Load(nil, env(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvJWTSecret)
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deskauth.json")
	body := `{
		"http_addr": ":9000",
		"token_backend": "redis",
		"redis_addr": "cache:6379",
		"access_ttl": "5m",
		"refresh_ttl": 3600000000000,
		"jwt_secret": "from-file-but-too-short",
		"allowed_origins": ["https://desk.example"]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	args := []string{"-c", path, "-a", ":9100", "-unrelated", "x", "-access-ttl=7m"}
	cfg, err := Load(args, env(map[string]string{EnvJWTSecret: testSecret, EnvTOTPKey: "  abcd  "}))
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.HTTPAddr, "flag overrides file")
	assert.Equal(t, BackendRedis, cfg.TokenBackend)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 7*time.Minute, cfg.AccessTTL)
	assert.Equal(t, time.Hour, cfg.RefreshTTL)
	assert.Equal(t, testSecret, cfg.JWTSecret, "env overrides file")
	assert.Equal(t, "abcd", cfg.TOTPKeyHex)
	assert.Equal(t, []string{"https://desk.example"}, cfg.AllowedOrigins)
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_ttl": true}`), 0o600))

	_, err := Load([]string{"-config", path}, env(map[string]string{EnvJWTSecret: testSecret}))
	require.Error(t, err)

	_, err = Load([]string{"-c", filepath.Join(t.TempDir(), "missing.json")}, env(map[string]string{EnvJWTSecret: testSecret}))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var c Config
		c.LoadDefaults()
		c.JWTSecret = testSecret
		return c
	}

	c := base()
	require.NoError(t, c.Validate())

	c = base()
	c.TokenBackend = "etcd"
	assert.Error(t, c.Validate())

	c = base()
	c.UserBackend = BackendRedis
	assert.Error(t, c.Validate())

	c = base()
	c.TokenBackend = BackendRedis
	c.RedisAddr = ""
	assert.Error(t, c.Validate())

	c = base()
	c.AccessTTL = 0
	assert.Error(t, c.Validate())
}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{"separate value", []string{"-c", "conf.json", "-a", "x"}, []string{"-c"}, []string{"-c", "conf.json"}},
		{"equals form", []string{"-config=alt.json", "-a", "x"}, []string{"-config"}, []string{"-config=alt.json"}},
		{"bool flag", []string{"-migrate", "-a", ":1"}, []string{"-migrate", "-a"}, []string{"-migrate", "-a", ":1"}},
		{"nothing allowed", []string{"-z", "1"}, []string{"-c"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestOriginsFlag(t *testing.T) {
	cfg, err := Load([]string{"-origins", "https://a.example, https://b.example"}, env(map[string]string{EnvJWTSecret: testSecret}))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, strings.Contains(strings.Join(cfg.AllowedOrigins, ""), " "))
}

func TestSecureCookieFlag(t *testing.T) {
	secrets := env(map[string]string{EnvJWTSecret: testSecret})

	cfg, err := Load([]string{"-secure-cookie", "-a", ":9200"}, secrets)
	require.NoError(t, err)
	assert.True(t, cfg.SecureCookie)
	assert.Equal(t, ":9200", cfg.HTTPAddr)

	cfg, err = Load([]string{"-secure-cookie=false"}, secrets)
	require.NoError(t, err)
	assert.False(t, cfg.SecureCookie)
}

func TestEnvironmentSetting(t *testing.T) {
	secrets := env(map[string]string{EnvJWTSecret: testSecret})

	cfg, err := Load(nil, secrets)
	require.NoError(t, err)
	assert.Equal(t, EnvironmentProduction, cfg.Environment)

	cfg, err = Load([]string{"-env", "development", "-l", "debug"}, secrets)
	require.NoError(t, err)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = Load([]string{"-env", "staging"}, secrets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging")
}
