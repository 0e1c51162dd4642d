package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/httpapi"
	"github.com/MrEthical07/deskauth/internal/audit"
	"github.com/MrEthical07/deskauth/internal/config"
	"github.com/MrEthical07/deskauth/internal/logging"
	"github.com/MrEthical07/deskauth/internal/vault"
	"github.com/MrEthical07/deskauth/metrics/export/prometheus"
	"github.com/MrEthical07/deskauth/realtime"
	"github.com/MrEthical07/deskauth/realtime/ws"
)

// App owns the engine, its stores, and the HTTP server.
type App struct {
	config   *config.Config
	log      *logging.ZapLogger
	engine   *deskauth.Engine
	backends *backends
	gate     *realtime.Gate
	server   *http.Server
}

func NewApp(ctx context.Context, args []string, getenv func(string) string, out io.Writer) (*App, error) {
	cfg, err := config.Load(args, getenv)
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg, out)

	ecfg, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	engine, err := deskauth.New().
		WithConfig(ecfg).
		WithUserStore(b.users).
		WithAttemptStore(b.attempts).
		WithTokenStore(b.tokens).
		WithMailer(logMailer{log: log.With("component", "mailer")}).
		WithAuditSink(audit.NewLoggerSink(log)).
		WithLogger(log).
		Build()
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	report := engine.SecurityReport()
	log.Info(ctx, "security posture",
		"signing_alg", report.SigningAlgorithm,
		"access_ttl", report.AccessTTL,
		"refresh_ttl", report.RefreshTTL,
		"argon2_memory_kib", report.Argon2.Memory,
		"verified_email_required", report.VerifiedEmailRequired,
		"captcha_threshold", report.CaptchaThreshold,
		"captcha_verifier", report.CaptchaVerifierSet,
		"totp_sealed", report.TOTPSecretsSealed,
		"revoke_on_reset", report.SessionsRevokedOnReset,
	)

	gate := realtime.NewGate(engine, b.tickets,
		realtime.WithPolicy(engine.Policy()),
		realtime.WithLogger(log),
	)
	api := httpapi.NewHandler(engine, httpapi.Config{
		CookieName:     cfg.AuthCookie,
		SecureCookie:   cfg.SecureCookie,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        prometheus.New(engine).Handler(),
		AdminRole:      ecfg.Roles.Admin,
		Realtime: ws.NewHandler(gate, ws.Config{
			AllowedOrigins: cfg.AllowedOrigins,
			CookieName:     cfg.AuthCookie,
		}, log),
	}, log)

	return &App{
		config:   cfg,
		log:      log,
		engine:   engine,
		backends: b,
		gate:     gate,
		server: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// newLogger picks zap's development console encoder for development and the
// production JSON encoder otherwise.
func newLogger(cfg *config.Config, out io.Writer) *logging.ZapLogger {
	format := logging.FormatJSON
	if cfg.Environment == config.EnvironmentDevelopment {
		format = logging.FormatConsole
	}
	return logging.New(out, cfg.LogLevel, format)
}

func engineConfig(cfg *config.Config) (deskauth.Config, error) {
	ecfg := deskauth.DefaultConfig()
	ecfg.JWT.PrivateKey = []byte(cfg.JWTSecret)
	ecfg.JWT.AccessTTL = cfg.AccessTTL
	ecfg.Refresh.TTL = cfg.RefreshTTL
	ecfg.Login.RequireVerifiedEmail = cfg.RequireVerifiedEmail
	ecfg.TOTP.Issuer = cfg.TOTPIssuer
	ecfg.Metrics.Enabled = true
	ecfg.Metrics.EnableLatencyHistograms = true

	key, err := vault.ParseHexKey(cfg.TOTPKeyHex)
	if err != nil {
		return deskauth.Config{}, fmt.Errorf("config: %s: %w", config.EnvTOTPKey, err)
	}
	ecfg.TOTP.SealKey = key
	if err := ecfg.Validate(); err != nil {
		return deskauth.Config{}, err
	}
	return ecfg, nil
}

// Run serves until ctx is done, then drains connections and releases the
// stores.
func (app *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		app.close()
		return err
	}
	return app.serve(ctx, ln)
}

func (app *App) serve(ctx context.Context, ln net.Listener) error {
	defer app.close()

	errCh := make(chan error, 1)
	go func() {
		app.log.Info(ctx, "listening", "addr", ln.Addr().String())
		errCh <- app.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (app *App) close() {
	app.engine.Close()
	if err := app.backends.Close(); err != nil {
		app.log.Warn(context.Background(), "closing stores", "error", err)
	}
	_ = app.log.Sync()
}
