package main

import (
	"context"

	"github.com/MrEthical07/deskauth/internal/logging"
)

// logMailer records deliveries without the token. Deployments that send
// real mail pass their own deskauth.Mailer to the builder.
type logMailer struct {
	log logging.Logger
}

func (m logMailer) SendVerification(ctx context.Context, email, _ string) error {
	m.log.Info(ctx, "verification mail issued", "email", email)
	return nil
}

func (m logMailer) SendPasswordReset(ctx context.Context, email, _ string) error {
	m.log.Info(ctx, "password reset mail issued", "email", email)
	return nil
}
