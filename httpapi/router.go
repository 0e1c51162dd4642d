// Package httpapi exposes the deskauth engine over HTTP with gin.
//
// Every operation has explicit request and response structs. Errors are
// rendered as {"error": kind, "message": text} with the status chosen by
// [StatusFor].
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/internal/logging"
	"github.com/gin-gonic/gin"
)

// Engine is the subset of *deskauth.Engine served over HTTP.
type Engine interface {
	Register(ctx context.Context, in deskauth.RegisterInput) (string, error)
	Login(ctx context.Context, in deskauth.LoginInput) (deskauth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (deskauth.TokenResult, error)
	Logout(ctx context.Context, in deskauth.LogoutInput) (int, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	History(ctx context.Context, userID string) ([]deskauth.AuthAttempt, error)

	SetupTOTP(ctx context.Context, userID string) (deskauth.TOTPSetup, error)
	VerifyTOTP(ctx context.Context, userID, code string) (deskauth.SecondFactorResult, error)
	DisableTOTP(ctx context.Context, userID string) (deskauth.SecondFactorResult, error)
	GenerateRecoveryCodes(ctx context.Context, userID string) ([]string, error)
	VerifyRecoveryCode(ctx context.Context, userID, code string) error

	Authenticate(ctx context.Context, token string) (deskauth.IdentityClaims, error)
	Authorize(claims deskauth.IdentityClaims, required ...string) bool
}

// Config controls cookies, CORS, and optional extra endpoints.
type Config struct {
	// CookieName is the access-token cookie set on login and read by guards.
	// Empty disables cookies.
	CookieName   string
	SecureCookie bool
	// AllowedOrigins enables CORS for the listed origins; "*" allows any.
	AllowedOrigins []string
	// Metrics, when set, is served at GET /metrics to AdminRole.
	Metrics   http.Handler
	AdminRole string
	// Realtime, when set, is served at GET /ws.
	Realtime http.Handler
}

// Handler serves the auth API.
type Handler struct {
	engine Engine
	config Config
	log    logging.Logger
}

func NewHandler(engine Engine, cfg Config, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop{}
	}
	if cfg.AdminRole == "" {
		cfg.AdminRole = "admin"
	}
	return &Handler{engine: engine, config: cfg, log: log.With("component", "http")}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog(), h.cors(), h.clientContext())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/refresh", h.refresh)
		auth.POST("/logout", h.logout)
		auth.POST("/password/request-reset", h.requestPasswordReset)
		auth.POST("/password/reset", h.resetPassword)
		auth.POST("/verify-email", h.verifyEmail)
		auth.GET("/verify-email", h.verifyEmail)
		auth.POST("/resend-verification", h.resendVerification)

		authed := auth.Group("", h.requireAuth())
		authed.POST("/password/change", h.changePassword)
		authed.GET("/history", h.history)
		authed.POST("/logout-all", h.logoutAll)
		authed.GET("/me", h.me)

		tfa := authed.Group("/2fa")
		tfa.POST("/setup", h.setupTOTP)
		tfa.POST("/verify", h.verifyTOTP)
		tfa.POST("/disable", h.disableTOTP)
		tfa.POST("/recovery-codes", h.generateRecoveryCodes)
		tfa.POST("/verify-recovery", h.verifyRecoveryCode)
	}

	if h.config.Metrics != nil {
		r.GET("/metrics", h.requireAuth(h.config.AdminRole), gin.WrapH(h.config.Metrics))
	}
	if h.config.Realtime != nil {
		r.GET("/ws", gin.WrapH(h.config.Realtime))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "route not found"})
	})
	return r
}

func (h *Handler) setAccessCookie(c *gin.Context, token string, claims deskauth.IdentityClaims) {
	if h.config.CookieName == "" {
		return
	}
	maxAge := int(claims.ExpiresAt.Sub(claims.IssuedAt) / time.Second)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, token, maxAge, "/", "", h.config.SecureCookie, true)
}

func (h *Handler) clearAccessCookie(c *gin.Context) {
	if h.config.CookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, "", -1, "/", "", h.config.SecureCookie, true)
}
