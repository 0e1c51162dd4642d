package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) setupTOTP(c *gin.Context) {
	setup, err := h.engine.SetupTOTP(c.Request.Context(), claimsFrom(c).Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, setupResponse{Secret: setup.Secret, OTPAuthURL: setup.ProvisioningURI})
}

func (h *Handler) verifyTOTP(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.engine.VerifyTOTP(c.Request.Context(), claimsFrom(c).Subject, req.Code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.setAccessCookie(c, res.AccessToken, res.Claims)
	c.JSON(http.StatusOK, secondFactorResponse{Enabled: res.Enabled, AccessToken: res.AccessToken, User: claimsBody(res.Claims)})
}

func (h *Handler) disableTOTP(c *gin.Context) {
	res, err := h.engine.DisableTOTP(c.Request.Context(), claimsFrom(c).Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.setAccessCookie(c, res.AccessToken, res.Claims)
	c.JSON(http.StatusOK, secondFactorResponse{Enabled: res.Enabled, AccessToken: res.AccessToken, User: claimsBody(res.Claims)})
}

func (h *Handler) generateRecoveryCodes(c *gin.Context) {
	codes, err := h.engine.GenerateRecoveryCodes(c.Request.Context(), claimsFrom(c).Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recoveryCodesResponse{Codes: codes})
}

func (h *Handler) verifyRecoveryCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.engine.VerifyRecoveryCode(c.Request.Context(), claimsFrom(c).Subject, req.Code); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}
