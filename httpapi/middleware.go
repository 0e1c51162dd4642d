package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/middleware"
	"github.com/gin-gonic/gin"
)

const claimsKey = "deskauth.claims"

// requestLog writes one line per request. Bodies are never logged.
func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			h.log.Warn(c.Request.Context(), "http request", args...)
		default:
			h.log.Info(c.Request.Context(), "http request", args...)
		}
	}
}

func (h *Handler) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !h.originAllowed(origin) {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization")
		c.Header("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) originAllowed(origin string) bool {
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// clientContext copies the caller IP and User-Agent into the request context
// for attempt rows and refresh token metadata.
func (h *Handler) clientContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := deskauth.WithClientIP(c.Request.Context(), c.ClientIP())
		ctx = deskauth.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requireAuth authenticates the access token and, when roles are given,
// applies the role check including the admin second-factor rule.
func (h *Handler) requireAuth(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := middleware.RequestToken(c.Request, h.config.CookieName)
		if !ok {
			h.writeError(c, deskauth.ErrInvalidToken)
			return
		}
		claims, err := h.engine.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if len(roles) > 0 && !h.engine.Authorize(claims, roles...) {
			h.writeError(c, deskauth.ErrDenied)
			return
		}
		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(middleware.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func claimsFrom(c *gin.Context) deskauth.IdentityClaims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(deskauth.IdentityClaims)
	return claims
}
