package consent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string, headers map[string]string) error
	Do(method, path string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	AdvanceClock(d time.Duration)
}

// scriptHosts identifies each category's head script in rendered HTML.
var scriptHosts = map[string]string{
	"analytics":  "googletagmanager.com",
	"marketing":  "connect.facebook.net",
	"functional": "static.hotjar.com",
}

// RegisterSteps registers consent-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &consentSteps{tc: tc}

	// Consent management steps
	ctx.Step(`^I open the consent banner$`, steps.openBanner)
	ctx.Step(`^I accept all cookies$`, steps.acceptAll)
	ctx.Step(`^I reject all cookies$`, steps.rejectAll)
	ctx.Step(`^I save preferences analytics (on|off), marketing (on|off), functional (on|off)$`, steps.savePreferences)
	ctx.Step(`^I reset my consent$`, steps.reset)
	ctx.Step(`^I load the page head$`, steps.loadHead)
	ctx.Step(`^I track a "([^"]*)" event "([^"]*)"$`, steps.track)
	ctx.Step(`^(\d+) days pass$`, steps.daysPass)

	// Consent assertion steps
	ctx.Step(`^the banner should be (visible|hidden)$`, steps.bannerShouldBe)
	ctx.Step(`^consent for "([^"]*)" should be (granted|denied)$`, steps.consentShouldBe)
	ctx.Step(`^the head should (include|exclude) the "([^"]*)" script$`, steps.headShould)
	ctx.Step(`^the event should (be|not be) delivered$`, steps.eventShouldBe)
}

type consentSteps struct {
	tc TestContext
}

func (s *consentSteps) openBanner(ctx context.Context) error {
	return s.tc.GET("/consent", nil)
}

func (s *consentSteps) acceptAll(ctx context.Context) error {
	return s.decide(map[string]interface{}{"action": "accept_all"})
}

func (s *consentSteps) rejectAll(ctx context.Context) error {
	return s.decide(map[string]interface{}{"action": "reject_all"})
}

func (s *consentSteps) savePreferences(ctx context.Context, analytics, marketing, functional string) error {
	return s.decide(map[string]interface{}{
		"action": "save",
		"preferences": map[string]bool{
			"analytics":  analytics == "on",
			"marketing":  marketing == "on",
			"functional": functional == "on",
		},
	})
}

func (s *consentSteps) decide(body map[string]interface{}) error {
	if err := s.tc.POST("/consent", body); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("saving consent returned %d: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *consentSteps) reset(ctx context.Context) error {
	return s.tc.Do("DELETE", "/consent")
}

func (s *consentSteps) loadHead(ctx context.Context) error {
	return s.tc.GET("/consent/head", nil)
}

func (s *consentSteps) track(ctx context.Context, category, name string) error {
	return s.tc.POST("/consent/track", map[string]interface{}{"name": name, "category": category})
}

func (s *consentSteps) daysPass(ctx context.Context, days int) error {
	s.tc.AdvanceClock(time.Duration(days) * 24 * time.Hour)
	return nil
}

func (s *consentSteps) bannerShouldBe(ctx context.Context, want string) error {
	if err := s.tc.GET("/consent", nil); err != nil {
		return err
	}
	body := string(s.tc.GetLastResponseBody())
	visible := strings.Contains(body, `"bannerVisible":true`)
	if visible != (want == "visible") {
		return fmt.Errorf("expected banner %s, got %s", want, body)
	}
	return nil
}

func (s *consentSteps) consentShouldBe(ctx context.Context, category, want string) error {
	if err := s.tc.GET("/consent", nil); err != nil {
		return err
	}
	body := string(s.tc.GetLastResponseBody())
	granted := strings.Contains(body, fmt.Sprintf(`"%s":true`, category)) &&
		strings.Contains(body, `"consent":`)
	if granted != (want == "granted") {
		return fmt.Errorf("expected %s to be %s, got %s", category, want, body)
	}
	return nil
}

func (s *consentSteps) headShould(ctx context.Context, mode, category string) error {
	host, ok := scriptHosts[category]
	if !ok {
		return fmt.Errorf("no head script configured for %q", category)
	}
	body := string(s.tc.GetLastResponseBody())
	if strings.Contains(body, host) != (mode == "include") {
		return fmt.Errorf("expected head to %s %s script, got %s", mode, category, body)
	}
	return nil
}

func (s *consentSteps) eventShouldBe(ctx context.Context, mode string) error {
	body := string(s.tc.GetLastResponseBody())
	delivered := strings.Contains(body, `"delivered":true`)
	if delivered != (mode == "be") {
		return fmt.Errorf("expected event to %s delivered, got %s", mode, body)
	}
	return nil
}
