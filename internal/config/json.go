package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Duration unmarshals from either a Go duration string ("15m") or integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return errors.New("invalid duration")
	}
	return nil
}

// JSONConfig is the file representation of Config. Absent fields keep the
// value already in Config.
type JSONConfig struct {
	HTTPAddr             *string   `json:"http_addr"`
	Environment          *string   `json:"environment"`
	LogLevel             *string   `json:"log_level"`
	DatabaseDSN          *string   `json:"database_dsn"`
	RedisAddr            *string   `json:"redis_addr"`
	RedisPassword        *string   `json:"redis_password"`
	RedisDB              *int      `json:"redis_db"`
	UserBackend          *string   `json:"user_backend"`
	TokenBackend         *string   `json:"token_backend"`
	JWTSecret            *string   `json:"jwt_secret"`
	TOTPKeyHex           *string   `json:"totp_key_hex"`
	TOTPIssuer           *string   `json:"totp_issuer"`
	AuthCookie           *string   `json:"auth_cookie"`
	SecureCookie         *bool     `json:"secure_cookie"`
	AccessTTL            *Duration `json:"access_ttl"`
	RefreshTTL           *Duration `json:"refresh_ttl"`
	RequireVerifiedEmail *bool     `json:"require_verified_email"`
	MigrateOnStart       *bool     `json:"migrate_on_start"`
	AllowedOrigins       []string  `json:"allowed_origins"`
	ShutdownTimeout      *Duration `json:"shutdown_timeout"`
}

func parseJSONFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var c JSONConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.apply(cfg)
	return nil
}

func (c JSONConfig) apply(cfg *Config) {
	setString(&cfg.HTTPAddr, c.HTTPAddr)
	setString(&cfg.Environment, c.Environment)
	setString(&cfg.LogLevel, c.LogLevel)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.RedisAddr, c.RedisAddr)
	setString(&cfg.RedisPassword, c.RedisPassword)
	setString(&cfg.UserBackend, c.UserBackend)
	setString(&cfg.TokenBackend, c.TokenBackend)
	setString(&cfg.JWTSecret, c.JWTSecret)
	setString(&cfg.TOTPKeyHex, c.TOTPKeyHex)
	setString(&cfg.TOTPIssuer, c.TOTPIssuer)
	setString(&cfg.AuthCookie, c.AuthCookie)
	if c.RedisDB != nil {
		cfg.RedisDB = *c.RedisDB
	}
	if c.AccessTTL != nil {
		cfg.AccessTTL = c.AccessTTL.Duration
	}
	if c.RefreshTTL != nil {
		cfg.RefreshTTL = c.RefreshTTL.Duration
	}
	if c.ShutdownTimeout != nil {
		cfg.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.RequireVerifiedEmail != nil {
		cfg.RequireVerifiedEmail = *c.RequireVerifiedEmail
	}
	if c.SecureCookie != nil {
		cfg.SecureCookie = *c.SecureCookie
	}
	if c.MigrateOnStart != nil {
		cfg.MigrateOnStart = *c.MigrateOnStart
	}
	if c.AllowedOrigins != nil {
		cfg.AllowedOrigins = c.AllowedOrigins
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
