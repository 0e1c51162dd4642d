package internaldefs

import (
	"github.com/MrEthical07/deskauth"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   deskauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   deskauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "deskauth_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: deskauth.MetricLoginSuccess, Name: "deskauth_login_success_total", Help: "Successful logins."},
	{ID: deskauth.MetricLoginFailure, Name: "deskauth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: deskauth.MetricLoginCaptchaRequired, Name: "deskauth_login_captcha_required_total", Help: "Logins refused until a captcha is solved."},
	{ID: deskauth.MetricLoginAccountDisabled, Name: "deskauth_login_account_disabled_total", Help: "Logins against inactive accounts."},
	{ID: deskauth.MetricLoginEmailNotVerified, Name: "deskauth_login_email_not_verified_total", Help: "Logins refused for an unverified email."},
	{ID: deskauth.MetricRefreshSuccess, Name: "deskauth_refresh_success_total", Help: "Successful refreshes."},
	{ID: deskauth.MetricRefreshFailure, Name: "deskauth_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: deskauth.MetricLogout, Name: "deskauth_logout_total", Help: "Single-session logouts."},
	{ID: deskauth.MetricLogoutAll, Name: "deskauth_logout_all_total", Help: "All-session logouts."},
	{ID: deskauth.MetricRegisterSuccess, Name: "deskauth_register_success_total", Help: "Created accounts."},
	{ID: deskauth.MetricRegisterDuplicate, Name: "deskauth_register_duplicate_total", Help: "Registrations rejected for a taken email."},
	{ID: deskauth.MetricPasswordChangeSuccess, Name: "deskauth_password_change_success_total", Help: "Successful password changes."},
	{ID: deskauth.MetricPasswordChangeInvalidOld, Name: "deskauth_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: deskauth.MetricPasswordResetRequest, Name: "deskauth_password_reset_request_total", Help: "Password reset requests for known accounts."},
	{ID: deskauth.MetricPasswordResetSuccess, Name: "deskauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: deskauth.MetricPasswordResetFailure, Name: "deskauth_password_reset_failure_total", Help: "Rejected password reset tokens."},
	{ID: deskauth.MetricEmailVerificationRequest, Name: "deskauth_email_verification_request_total", Help: "Issued verification tokens."},
	{ID: deskauth.MetricEmailVerificationSuccess, Name: "deskauth_email_verification_success_total", Help: "Verified emails."},
	{ID: deskauth.MetricEmailVerificationFailure, Name: "deskauth_email_verification_failure_total", Help: "Rejected verification tokens."},
	{ID: deskauth.MetricTOTPSetup, Name: "deskauth_totp_setup_total", Help: "Started TOTP enrollments."},
	{ID: deskauth.MetricTOTPSuccess, Name: "deskauth_totp_success_total", Help: "Accepted TOTP codes."},
	{ID: deskauth.MetricTOTPFailure, Name: "deskauth_totp_failure_total", Help: "Rejected TOTP codes."},
	{ID: deskauth.MetricTOTPDisabled, Name: "deskauth_totp_disabled_total", Help: "Disabled TOTP enrollments."},
	{ID: deskauth.MetricRecoveryCodesGenerated, Name: "deskauth_recovery_codes_generated_total", Help: "Recovery code batches issued."},
	{ID: deskauth.MetricRecoveryCodeUsed, Name: "deskauth_recovery_code_used_total", Help: "Redeemed recovery codes."},
	{ID: deskauth.MetricRecoveryCodeFailed, Name: "deskauth_recovery_code_failed_total", Help: "Rejected recovery codes."},
	{ID: deskauth.MetricMailFailure, Name: "deskauth_mail_failure_total", Help: "Mailer deliveries that failed."},
	{ID: deskauth.MetricAuthenticateFailure, Name: "deskauth_authenticate_failure_total", Help: "Rejected access tokens."},
	{ID: deskauth.MetricAuthorizeDenied, Name: "deskauth_authorize_denied_total", Help: "Authorization checks that denied access."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: deskauth.MetricAuthenticateLatency, Name: "deskauth_authenticate_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the upper bounds of the engine's eight buckets.
var HistogramBounds = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
var HistogramBoundSuffix = []string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
