package service

import (
	"context"

	"consentry/internal/audit"
	"consentry/internal/gdpr/models"
	"consentry/internal/gdpr/token"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/privacy"
	"consentry/pkg/requestcontext"
)

// emitAudit anonymizes the subject and the client before logging and
// publishing event.
func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	event.Subject = privacy.AnonymizeEmail(event.Subject)
	event.ClientIP = privacy.AnonymizeIP(requestcontext.ClientIP(ctx))
	event.Client = audit.ClientSummary(requestcontext.UserAgent(ctx))

	s.logger.InfoContext(ctx, string(event.Action),
		"log_type", "audit",
		"subject", event.Subject,
		"status", event.Status,
		"client", event.Client,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "error", err, "action", event.Action)
	}
}

// rejectToken records a failed redemption and returns the one error every
// token failure maps to.
func (s *Service) rejectToken(ctx context.Context, wf workflow, emailAddr, tok, reason string) error {
	s.logger.WarnContext(ctx, "verification token rejected",
		"action", wf.action,
		"reason", reason,
		"email", privacy.AnonymizeEmail(emailAddr),
		"token", token.Redacted(tok),
	)
	s.metrics.IncTokenRejected(string(wf.action))
	s.metrics.IncConfirmation(string(wf.action), "invalid_token")
	s.emitAudit(ctx, audit.Event{
		Action:  audit.EventTokenRejected,
		Subject: emailAddr,
		Status:  string(models.StatusInvalid),
		Reason:  reason,
	})
	return dErrors.New(dErrors.CodeInvalidToken, msgInvalidToken)
}
