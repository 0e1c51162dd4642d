package config

import (
	"flag"
	"io"
	"strings"
)

var knownFlags = []string{
	"-a", "-d", "-r", "-l", "-env", "-users", "-tokens", "-cookie",
	"-secure-cookie", "-access-ttl", "-refresh-ttl", "-require-verified", "-migrate", "-origins",
}

// parseFlags overlays command-line flags onto cfg. Only the flags listed in
// knownFlags are considered so unrelated arguments do not fail parsing.
//
//	-a addr          HTTP listen address
//	-d dsn           PostgreSQL DSN
//	-r addr          Redis address
//	-l level         log level
//	-env name        development (console logs) or production (JSON logs)
//	-users name      user backend (postgres|memory)
//	-tokens name     token backend (redis|postgres|memory)
//	-cookie name     access token cookie name
//	-secure-cookie
//	-access-ttl d    access token lifetime
//	-refresh-ttl d   refresh token lifetime
//	-require-verified
//	-migrate
//	-origins list    comma-separated websocket origins
func parseFlags(cfg *Config, args []string) error {
	args = FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("deskauthd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.Environment, "env", cfg.Environment, "runtime environment")
	fs.StringVar(&cfg.UserBackend, "users", cfg.UserBackend, "user backend")
	fs.StringVar(&cfg.TokenBackend, "tokens", cfg.TokenBackend, "token backend")
	fs.StringVar(&cfg.AuthCookie, "cookie", cfg.AuthCookie, "access token cookie name")
	fs.BoolVar(&cfg.SecureCookie, "secure-cookie", cfg.SecureCookie, "mark the access token cookie Secure")
	fs.DurationVar(&cfg.AccessTTL, "access-ttl", cfg.AccessTTL, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTTL, "refresh-ttl", cfg.RefreshTTL, "refresh token lifetime")
	fs.BoolVar(&cfg.RequireVerifiedEmail, "require-verified", cfg.RequireVerifiedEmail, "require verified email to log in")
	fs.BoolVar(&cfg.MigrateOnStart, "migrate", cfg.MigrateOnStart, "run database migrations on start")
	origins := fs.String("origins", strings.Join(cfg.AllowedOrigins, ","), "allowed websocket origins")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.AllowedOrigins = splitList(*origins)
	return nil
}

// FilterArgs keeps only the allowed flags and their values. Both "-f value"
// and "-f=value" forms are recognized.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}

func jsonConfigPath(args []string) string {
	var path string
	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))
	return path
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
