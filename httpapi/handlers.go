package httpapi

import (
	"net/http"

	"github.com/MrEthical07/deskauth"
	"github.com/MrEthical07/deskauth/middleware"
	"github.com/gin-gonic/gin"
)

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, err := h.engine.Register(c.Request.Context(), deskauth.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		AcceptedPolicy: req.AcceptedPolicy,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registerResponse{UserID: userID})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.engine.Login(c.Request.Context(), deskauth.LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		CaptchaProof: req.CaptchaToken,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.setAccessCookie(c, res.AccessToken, res.Claims)
	c.JSON(http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         claimsBody(res.Claims),
	})
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.engine.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.setAccessCookie(c, res.AccessToken, res.Claims)
	c.JSON(http.StatusOK, tokenResponse{AccessToken: res.AccessToken, User: claimsBody(res.Claims)})
}

// logout revokes the supplied refresh token. Without one it falls back to
// the caller's identity, if any, and revokes all of their sessions.
func (h *Handler) logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	in := deskauth.LogoutInput{RefreshToken: req.RefreshToken}
	if in.RefreshToken == "" {
		if token, ok := middleware.RequestToken(c.Request, h.config.CookieName); ok {
			if claims, err := h.engine.Authenticate(c.Request.Context(), token); err == nil {
				in.UserID = claims.Subject
			}
		}
	}

	n, err := h.engine.Logout(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.clearAccessCookie(c)
	c.JSON(http.StatusOK, logoutResponse{Revoked: n})
}

func (h *Handler) logoutAll(c *gin.Context) {
	n, err := h.engine.Logout(c.Request.Context(), deskauth.LogoutInput{UserID: claimsFrom(c).Subject})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.clearAccessCookie(c)
	c.JSON(http.StatusOK, logoutResponse{Revoked: n})
}

func (h *Handler) requestPasswordReset(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.engine.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, successResponse{Success: true})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.engine.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

// verifyEmail accepts the token as JSON or, for mailed links, as ?token=.
func (h *Handler) verifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		token = req.Token
	}
	if err := h.engine.VerifyEmail(c.Request.Context(), token); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *Handler) resendVerification(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.engine.ResendVerification(c.Request.Context(), req.Email); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, successResponse{Success: true})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.engine.ChangePassword(c.Request.Context(), claimsFrom(c).Subject, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse{Success: true})
}

func (h *Handler) history(c *gin.Context) {
	attempts, err := h.engine.History(c.Request.Context(), claimsFrom(c).Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := historyResponse{Attempts: make([]attemptResponse, 0, len(attempts))}
	for _, a := range attempts {
		out.Attempts = append(out.Attempts, attemptResponse{
			Success:   a.Success,
			IP:        a.IP,
			UserAgent: a.UserAgent,
			CreatedAt: a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, claimsBody(claimsFrom(c)))
}
