package deskauth

import (
	"context"

	"github.com/MrEthical07/deskauth/internal/audit"
)

// AuditEvent is the record delivered to an AuditSink.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's async dispatcher.
type AuditSink = audit.Sink

const (
	auditEventLoginSuccess          = "login.success"
	auditEventLoginFailure          = "login.failure"
	auditEventLoginCaptchaRequired  = "login.captcha_required"
	auditEventRefreshSuccess        = "refresh.success"
	auditEventRefreshFailure        = "refresh.failure"
	auditEventLogout                = "logout"
	auditEventRegister              = "register"
	auditEventPasswordResetRequest  = "password.reset_requested"
	auditEventPasswordReset         = "password.reset"
	auditEventPasswordChanged       = "password.changed"
	auditEventEmailVerified         = "email.verified"
	auditEventVerificationRequested = "email.verification_requested"
	auditEventTOTPSetup             = "totp.setup"
	auditEventTOTPEnabled           = "totp.enabled"
	auditEventTOTPDisabled          = "totp.disabled"
	auditEventTOTPFailure           = "totp.failure"
	auditEventRecoveryGenerated     = "recovery.generated"
	auditEventRecoveryUsed          = "recovery.used"
	auditEventRecoveryFailure       = "recovery.failure"
	auditEventMailFailure           = "mail.failure"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, userID string, success bool, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	ev := audit.Event{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		ev.Error = string(KindOf(err))
	}
	e.audit.Emit(ctx, ev)
}

// AuditDropped reports how many audit events were discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}
