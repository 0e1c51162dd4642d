package httpapi

import (
	"time"

	"github.com/MrEthical07/deskauth"
)

type registerRequest struct {
	Email          string `json:"email" binding:"required"`
	Password       string `json:"password" binding:"required"`
	AcceptedPolicy bool   `json:"acceptedPolicy"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Phone          string `json:"phone"`
}

type registerResponse struct {
	UserID string `json:"userId"`
}

type loginRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	CaptchaToken string `json:"captchaToken"`
}

type claimsResponse struct {
	Subject      string    `json:"sub"`
	Email        string    `json:"email"`
	Roles        []string  `json:"roles"`
	SecondFactor bool      `json:"secondFactor"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func claimsBody(c deskauth.IdentityClaims) claimsResponse {
	roles := c.Roles
	if roles == nil {
		roles = []string{}
	}
	return claimsResponse{
		Subject:      c.Subject,
		Email:        c.Email,
		Roles:        roles,
		SecondFactor: c.SecondFactor,
		ExpiresAt:    c.ExpiresAt,
	}
}

type loginResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         claimsResponse `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type tokenResponse struct {
	AccessToken string         `json:"accessToken"`
	User        claimsResponse `json:"user"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutResponse struct {
	Revoked int `json:"revoked"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type setupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

type secondFactorResponse struct {
	Enabled     bool           `json:"enabled"`
	AccessToken string         `json:"accessToken"`
	User        claimsResponse `json:"user"`
}

type recoveryCodesResponse struct {
	Codes []string `json:"codes"`
}

type attemptResponse struct {
	Success   bool      `json:"success"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type historyResponse struct {
	Attempts []attemptResponse `json:"attempts"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
