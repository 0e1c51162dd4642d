package httpapi

import (
	"net/http"

	"github.com/MrEthical07/deskauth"
	"github.com/gin-gonic/gin"
)

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind deskauth.Kind) int {
	switch kind {
	case deskauth.KindNone:
		return http.StatusOK
	case deskauth.KindPolicyNotAccepted,
		deskauth.KindWeakPassword,
		deskauth.KindInvalidInput,
		deskauth.KindInvalidOrExpiredToken,
		deskauth.KindNoSetupInProgress,
		deskauth.KindInvalidCode,
		deskauth.KindInvalidRecoveryCode,
		deskauth.KindIncorrectPassword:
		return http.StatusBadRequest
	case deskauth.KindEmailTaken:
		return http.StatusConflict
	case deskauth.KindCaptchaRequired:
		return http.StatusPreconditionRequired
	case deskauth.KindInvalidCredentials, deskauth.KindInvalidToken:
		return http.StatusUnauthorized
	case deskauth.KindAccountDisabled, deskauth.KindEmailNotVerified, deskauth.KindDenied:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

// writeError renders err. Infrastructure details stay in the log.
func (h *Handler) writeError(c *gin.Context, err error) {
	kind := deskauth.KindOf(err)
	status := StatusFor(kind)
	msg := err.Error()
	if kind == deskauth.KindUnavailable {
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = "service temporarily unavailable"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: string(kind), Message: msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:   string(deskauth.KindInvalidInput),
		Message: err.Error(),
	})
}
