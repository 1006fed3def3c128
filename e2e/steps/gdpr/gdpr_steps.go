package gdpr

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"consentry/internal/audit"
	"consentry/internal/email"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Messages() []email.Message
	LastMessage(to string) (email.Message, bool)
	FailMail(err error)
	AuditEvents() []audit.Event
	SubjectExists(email string) bool
	AdvanceClock(d time.Duration)
	SetLink(link string)
	GetLink() string
}

var confirmLink = regexp.MustCompile(`href="([^"]*/gdpr/[^"]*/confirm\?[^"]*)"`)

// RegisterSteps registers data-subject request step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &gdprSteps{tc: tc}

	// Request steps
	ctx.Step(`^I request a data export for "([^"]*)" named "([^"]*)"$`, steps.requestExport)
	ctx.Step(`^I request deletion for "([^"]*)" named "([^"]*)"$`, steps.requestDeletion)
	ctx.Step(`^I request a data export for "([^"]*)" (\d+) times$`, steps.requestExportTimes)
	ctx.Step(`^the email transport is failing$`, steps.transportFailing)

	// Link steps
	ctx.Step(`^I open the confirmation link sent to "([^"]*)"$`, steps.openLinkSentTo)
	ctx.Step(`^I open the same confirmation link again$`, steps.openSameLink)
	ctx.Step(`^I open the confirmation link with "([^"]*)" set to "([^"]*)"$`, steps.openLinkWith)
	ctx.Step(`^(\d+) hours pass$`, steps.hoursPass)

	// Assertion steps
	ctx.Step(`^(\d+) emails? should have been sent$`, steps.emailsSent)
	ctx.Step(`^"([^"]*)" should receive an email with subject containing "([^"]*)"$`, steps.receivedSubject)
	ctx.Step(`^the last email to "([^"]*)" should have a CSV attachment containing "([^"]*)"$`, steps.csvAttachment)
	ctx.Step(`^the subject "([^"]*)" should (exist|not exist)$`, steps.subjectShould)
	ctx.Step(`^an audit event "([^"]*)" should be recorded$`, steps.auditRecorded)
	ctx.Step(`^an audit event "([^"]*)" with reason "([^"]*)" should be recorded$`, steps.auditRecordedWithReason)
}

type gdprSteps struct {
	tc TestContext
}

func (s *gdprSteps) requestExport(ctx context.Context, emailAddr, name string) error {
	return s.tc.POST("/gdpr/export", map[string]string{"email": emailAddr, "name": name})
}

// requestExportTimes submits n valid export requests and fails unless every
// one is accepted, so a later 429 is attributable to the limit alone.
func (s *gdprSteps) requestExportTimes(ctx context.Context, emailAddr string, n int) error {
	for i := range n {
		if err := s.requestExport(ctx, emailAddr, "Demo User"); err != nil {
			return err
		}
		if got := s.tc.GetLastResponseStatus(); got != http.StatusAccepted {
			return fmt.Errorf("export request %d: expected status 202 but got %d: %s", i+1, got, s.tc.GetLastResponseBody())
		}
	}
	return nil
}

func (s *gdprSteps) requestDeletion(ctx context.Context, emailAddr, name string) error {
	return s.tc.POST("/gdpr/delete-request", map[string]string{"email": emailAddr, "name": name})
}

func (s *gdprSteps) transportFailing(ctx context.Context) error {
	s.tc.FailMail(errors.New("mailbox unavailable"))
	return nil
}

// openLinkSentTo follows the link from the last verification email. Links
// point at the public site URL; only path and query are replayed here.
func (s *gdprSteps) openLinkSentTo(ctx context.Context, to string) error {
	msg, ok := s.tc.LastMessage(to)
	if !ok {
		return fmt.Errorf("no email sent to %s", to)
	}
	m := confirmLink.FindStringSubmatch(msg.HTMLBody)
	if m == nil {
		return fmt.Errorf("email to %s has no confirmation link", to)
	}
	link, err := url.Parse(html.UnescapeString(m[1]))
	if err != nil {
		return fmt.Errorf("parse confirmation link: %w", err)
	}
	s.tc.SetLink(link.RequestURI())
	return s.tc.GET(s.tc.GetLink(), nil)
}

func (s *gdprSteps) openSameLink(ctx context.Context) error {
	if s.tc.GetLink() == "" {
		return errors.New("no confirmation link opened yet")
	}
	return s.tc.GET(s.tc.GetLink(), nil)
}

func (s *gdprSteps) openLinkWith(ctx context.Context, param, value string) error {
	if s.tc.GetLink() == "" {
		return errors.New("no confirmation link opened yet")
	}
	link, err := url.Parse(s.tc.GetLink())
	if err != nil {
		return err
	}
	q := link.Query()
	q.Set(param, value)
	link.RawQuery = q.Encode()
	return s.tc.GET(link.RequestURI(), nil)
}

func (s *gdprSteps) hoursPass(ctx context.Context, hours int) error {
	s.tc.AdvanceClock(time.Duration(hours) * time.Hour)
	return nil
}

func (s *gdprSteps) emailsSent(ctx context.Context, n int) error {
	if got := len(s.tc.Messages()); got != n {
		return fmt.Errorf("expected %d emails, got %d", n, got)
	}
	return nil
}

func (s *gdprSteps) receivedSubject(ctx context.Context, to, fragment string) error {
	msg, ok := s.tc.LastMessage(to)
	if !ok {
		return fmt.Errorf("no email sent to %s", to)
	}
	if !strings.Contains(msg.Subject, fragment) {
		return fmt.Errorf("subject %q does not contain %q", msg.Subject, fragment)
	}
	return nil
}

func (s *gdprSteps) csvAttachment(ctx context.Context, to, fragment string) error {
	msg, ok := s.tc.LastMessage(to)
	if !ok {
		return fmt.Errorf("no email sent to %s", to)
	}
	for _, a := range msg.Attachments {
		if strings.HasPrefix(a.ContentType, "text/csv") {
			if !strings.Contains(string(a.Content), fragment) {
				return fmt.Errorf("attachment %s does not contain %q", a.Filename, fragment)
			}
			return nil
		}
	}
	return fmt.Errorf("email to %s has no CSV attachment", to)
}

func (s *gdprSteps) subjectShould(ctx context.Context, emailAddr, mode string) error {
	if s.tc.SubjectExists(emailAddr) != (mode == "exist") {
		return fmt.Errorf("expected subject %s to %s", emailAddr, mode)
	}
	return nil
}

func (s *gdprSteps) auditRecorded(ctx context.Context, action string) error {
	for _, e := range s.tc.AuditEvents() {
		if string(e.Action) == action {
			return nil
		}
	}
	return fmt.Errorf("no audit event %s recorded", action)
}

func (s *gdprSteps) auditRecordedWithReason(ctx context.Context, action, reason string) error {
	for _, e := range s.tc.AuditEvents() {
		if string(e.Action) == action && e.Reason == reason {
			return nil
		}
	}
	return fmt.Errorf("no audit event %s with reason %s recorded", action, reason)
}
