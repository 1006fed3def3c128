package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"consentry/internal/audit"
	"consentry/internal/email"
	"consentry/internal/email/templates"
	"consentry/internal/gdpr/export"
	"consentry/internal/gdpr/models"
	"consentry/internal/gdpr/token"
	"consentry/internal/platform/tracer"
	"consentry/internal/sentinel"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/privacy"
	"consentry/pkg/platform/validation"
	"consentry/pkg/requestcontext"
	str "consentry/pkg/string"
	pkgvalidation "consentry/pkg/validation"
)

// Paths the confirmation links point at.
const (
	ExportConfirmPath = "/gdpr/export/confirm"
	DeleteConfirmPath = "/gdpr/delete-request/confirm"
)

const (
	msgExportRequested = "A verification link has been sent to your email. Follow it to complete the data export."
	msgDeleteRequested = "If this email is registered with us, a verification link has been sent to it."
	msgExportCompleted = "Your data export has been completed and sent to your email."
	msgDeleteCompleted = "Your personal data has been deleted. A confirmation has been sent to your email."

	msgInvalidToken  = "invalid or expired token"
	msgInvalidParams = "invalid parameters"
)

// workflow is what differs between the export and the deletion flow.
type workflow struct {
	action         models.Action
	confirmPath    string
	verifyTemplate templates.Name
	requested      audit.AuditEvent
	completed      audit.AuditEvent
	requestMessage string
	// mailKnownOnly skips the email for unknown subjects without changing
	// the response.
	mailKnownOnly bool
	// bindName puts the name into the token and the link.
	bindName bool
}

var workflows = map[models.Action]workflow{
	models.ActionExport: {
		action:         models.ActionExport,
		confirmPath:    ExportConfirmPath,
		verifyTemplate: templates.ExportVerify,
		requested:      audit.EventExportRequested,
		completed:      audit.EventExportCompleted,
		requestMessage: msgExportRequested,
	},
	models.ActionDelete: {
		action:         models.ActionDelete,
		confirmPath:    DeleteConfirmPath,
		verifyTemplate: templates.DeleteVerify,
		requested:      audit.EventDeletionRequested,
		completed:      audit.EventDeletionCompleted,
		requestMessage: msgDeleteRequested,
		mailKnownOnly:  true,
		bindName:       true,
	},
}

type subjectInput struct {
	Email string `validate:"required,max=254,subject_email"`
	Name  string `validate:"required,min=2,max=100"`
}

func sanitizeInput(emailAddr, name string) subjectInput {
	return subjectInput{Email: str.Sanitize(emailAddr), Name: str.Sanitize(name)}
}

// ValidFor renders the lifetime of an action's token, e.g. "24 hours".
func ValidFor(action models.Action) string {
	return fmt.Sprintf("%d hours", int(token.MaxAge(action)/time.Hour))
}

// Request validates the subject, issues a token and mails the confirmation
// link for action.
func (s *Service) Request(ctx context.Context, action models.Action, emailAddr, name string) (res *models.RequestResult, err error) {
	wf, ok := workflows[action]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown request action")
	}
	in := sanitizeInput(emailAddr, name)

	ctx, span := s.tracer.Start(ctx, tracer.SpanRequest,
		tracer.String(tracer.AttrAction, string(action)),
		tracer.String(tracer.AttrSubjectHash, tracer.HashSubject(in.Email)),
	)
	defer func() { span.End(err) }()

	if err := pkgvalidation.Validate(in); err != nil {
		s.metrics.IncRequest(string(action), "invalid")
		return nil, err
	}

	known := true
	if wf.mailKnownOnly {
		_, err := s.lookup(ctx, in.Email)
		switch {
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			known = false
		case err != nil:
			return nil, err
		}
	}
	span.SetAttributes(tracer.Bool(tracer.AttrSubjectKnown, known))

	res = &models.RequestResult{
		Message:   wf.requestMessage,
		RequestID: uuid.NewString(),
		ValidFor:  ValidFor(action),
	}

	if !known {
		s.emitAudit(ctx, audit.Event{
			Action:      wf.requested,
			Subject:     in.Email,
			Status:      string(models.StatusRequested),
			ReferenceID: res.RequestID,
			Reason:      "unknown_subject",
		})
		s.metrics.IncRequest(string(action), "unknown_subject")
		return res, nil
	}

	tok, err := s.signer.Issue(ctx, s.subjectData(wf, in.Email, in.Name), action)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	subject, body, err := s.renderer.Render(wf.verifyTemplate, templates.VerifyData{
		SiteName:   s.cfg.SiteName,
		Name:       in.Name,
		Link:       s.confirmLink(wf, tok, in),
		ValidFor:   res.ValidFor,
		Controller: s.cfg.Controller,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render email")
	}

	if err := s.send(ctx, wf.verifyTemplate, email.Message{
		From:     s.cfg.From,
		To:       in.Email,
		Subject:  subject,
		HTMLBody: body,
	}); err != nil {
		s.metrics.IncRequest(string(action), "send_failed")
		return nil, err
	}

	s.emitAudit(ctx, audit.Event{
		Action:      wf.requested,
		Subject:     in.Email,
		Status:      string(models.StatusRequested),
		ReferenceID: res.RequestID,
	})
	s.metrics.IncRequest(string(action), "sent")
	return res, nil
}

// ConfirmExport redeems an export link and mails the CSV export.
func (s *Service) ConfirmExport(ctx context.Context, tok, emailAddr string) (res *models.ExportResult, err error) {
	wf := workflows[models.ActionExport]
	ctx, span := s.tracer.Start(ctx, tracer.SpanConfirm, tracer.String(tracer.AttrAction, string(wf.action)))
	defer func() { span.End(err) }()

	in, subject, err := s.redeem(ctx, span, wf, tok, emailAddr, "")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	csv, err := export.BuildCSV(subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build export")
	}
	now := requestcontext.Now(ctx).UTC()
	filename := export.Filename(now)

	subjectLine, body, err := s.renderer.Render(templates.ExportData, templates.ExportDataData{
		SiteName:    s.cfg.SiteName,
		GeneratedAt: now,
		Filename:    filename,
		Controller:  s.cfg.Controller,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render email")
	}

	if err := s.send(ctx, templates.ExportData, email.Message{
		From:     s.cfg.From,
		To:       in.Email,
		Subject:  subjectLine,
		HTMLBody: body,
		Attachments: []email.Attachment{{
			Filename:    filename,
			ContentType: "text/csv; charset=utf-8",
			Content:     csv,
		}},
	}); err != nil {
		s.metrics.IncConfirmation(string(wf.action), "send_failed")
		return nil, err
	}
	s.metrics.ObserveEffect(string(wf.action), time.Since(start))

	s.emitAudit(ctx, audit.Event{
		Action:  wf.completed,
		Subject: in.Email,
		Status:  string(models.StatusCompleted),
	})
	s.metrics.IncConfirmation(string(wf.action), "completed")
	return &models.ExportResult{Message: msgExportCompleted, ExportedAt: now}, nil
}

// ConfirmDeletion redeems a deletion link, deletes the subject and mails a
// receipt. A receipt that cannot be delivered is logged; the deletion stands.
func (s *Service) ConfirmDeletion(ctx context.Context, tok, emailAddr, name string) (res *models.DeletionResult, err error) {
	wf := workflows[models.ActionDelete]
	ctx, span := s.tracer.Start(ctx, tracer.SpanConfirm, tracer.String(tracer.AttrAction, string(wf.action)))
	defer func() { span.End(err) }()

	in, subject, err := s.redeem(ctx, span, wf, tok, emailAddr, name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	receipt, err := s.delete(ctx, subject.Email)
	if err != nil {
		s.metrics.IncConfirmation(string(wf.action), "failed")
		return nil, err
	}
	s.metrics.ObserveEffect(string(wf.action), time.Since(start))

	s.emitAudit(ctx, audit.Event{
		Action:      wf.completed,
		Subject:     in.Email,
		Status:      string(models.StatusCompleted),
		ReferenceID: receipt.ReferenceID,
	})

	subjectLine, body, err := s.renderer.Render(templates.DeleteDone, templates.DeleteDoneData{
		SiteName:    s.cfg.SiteName,
		Name:        in.Name,
		DeletedAt:   receipt.DeletedAt,
		ReferenceID: receipt.ReferenceID,
		Categories:  receipt.Categories,
		Controller:  s.cfg.Controller,
	})
	if err == nil {
		err = s.send(ctx, templates.DeleteDone, email.Message{
			From:     s.cfg.From,
			To:       in.Email,
			Subject:  subjectLine,
			HTMLBody: body,
		})
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "deletion receipt not delivered",
			"reference_id", receipt.ReferenceID,
			"email", privacy.AnonymizeEmail(in.Email),
			"error", err,
		)
	}

	s.metrics.IncConfirmation(string(wf.action), "completed")
	return &models.DeletionResult{
		Message:     msgDeleteCompleted,
		DeletedAt:   receipt.DeletedAt,
		ReferenceID: receipt.ReferenceID,
	}, nil
}

// redeem checks the link parameters, verifies the token, loads the subject
// and marks the token used. Verification failures of any kind, including a
// second redemption, produce the same CodeInvalidToken error.
func (s *Service) redeem(ctx context.Context, span tracer.Span, wf workflow, tok, emailAddr, name string) (subjectInput, *models.Subject, error) {
	tok = strings.TrimSpace(tok)
	in := sanitizeInput(emailAddr, name)
	span.SetAttributes(tracer.String(tracer.AttrSubjectHash, tracer.HashSubject(in.Email)))

	if tok == "" || in.Email == "" || (wf.bindName && in.Name == "") {
		s.metrics.IncConfirmation(string(wf.action), "bad_request")
		return in, nil, dErrors.New(dErrors.CodeBadRequest, msgInvalidParams)
	}
	if len(tok) > validation.MaxTokenLength {
		return in, nil, s.rejectToken(ctx, wf, in.Email, tok, "malformed")
	}

	claims, ok := s.signer.Inspect(ctx, tok, s.subjectData(wf, in.Email, in.Name), wf.action)
	if !ok {
		return in, nil, s.rejectToken(ctx, wf, in.Email, tok, "invalid")
	}
	span.AddEvent(tracer.EventTokenVerified)

	subject, err := s.lookup(ctx, in.Email)
	if err != nil {
		outcome := "failed"
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			outcome = "unknown_subject"
		}
		s.metrics.IncConfirmation(string(wf.action), outcome)
		return in, nil, err
	}

	ttl := claims.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl < time.Second {
		ttl = time.Second
	}
	first, err := s.guard.MarkUsed(ctx, claims.Signature, ttl)
	if err != nil {
		s.metrics.IncConfirmation(string(wf.action), "failed")
		return in, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record token use")
	}
	if !first {
		return in, nil, s.rejectToken(ctx, wf, in.Email, tok, "replayed")
	}
	return in, subject, nil
}

func (s *Service) subjectData(wf workflow, emailAddr, name string) string {
	if !wf.bindName {
		name = ""
	}
	return token.SubjectData(wf.action, emailAddr, name)
}

func (s *Service) confirmLink(wf workflow, tok string, in subjectInput) string {
	return ConfirmLink(s.cfg.SiteURL, wf.action, tok, in.Email, in.Name)
}

// ConfirmLink is the URL mailed for action. The name is carried only when
// the token binds it.
func ConfirmLink(siteURL string, action models.Action, tok, emailAddr, name string) string {
	wf := workflows[action]
	q := url.Values{}
	q.Set("token", tok)
	q.Set("email", emailAddr)
	if wf.bindName {
		q.Set("name", name)
	}
	return strings.TrimRight(siteURL, "/") + wf.confirmPath + "?" + q.Encode()
}

func (s *Service) lookup(ctx context.Context, emailAddr string) (*models.Subject, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSubjectLookup)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EffectTimeout)
	defer cancel()

	subject, err := s.subjects.FindByEmail(ctx, emailAddr)
	if errors.Is(err, sentinel.ErrNotFound) {
		span.SetAttributes(tracer.Bool(tracer.AttrSubjectKnown, false))
		span.End(nil)
		return nil, dErrors.New(dErrors.CodeNotFound, "subject not found")
	}
	span.End(err)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up subject")
	}
	return subject, nil
}

func (s *Service) delete(ctx context.Context, emailAddr string) (*models.DeletionReceipt, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanSubjectDelete)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EffectTimeout)
	defer cancel()

	receipt, err := s.subjects.Delete(ctx, emailAddr)
	span.End(err)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "subject not found")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete subject")
	}
	return receipt, nil
}

func (s *Service) send(ctx context.Context, name templates.Name, msg email.Message) error {
	ctx, span := s.tracer.Start(ctx, tracer.SpanEmailSend,
		tracer.String(tracer.AttrTemplate, string(name)),
		tracer.Int64(tracer.AttrAttachments, int64(len(msg.Attachments))),
	)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EffectTimeout)
	defer cancel()

	err := s.mailer.Send(ctx, msg)
	span.End(err)
	s.metrics.IncEmail(string(name), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send email",
			"template", name,
			"to", privacy.AnonymizeEmail(msg.To),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to send email")
	}
	return nil
}
