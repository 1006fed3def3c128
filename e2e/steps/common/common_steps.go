// Package common holds the request and response steps shared by every feature.
package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POSTRaw(path, body string) error
	GET(path string, headers map[string]string) error
	Do(method, path string) error
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
	GetLastResponseBody() []byte
}

func RegisterSteps(sc *godog.ScenarioContext, tc TestContext) {
	s := &steps{tc: tc}

	sc.Step(`^consentry is running$`, s.running)
	sc.Step(`^I POST to "([^"]*)" with raw body '([^']*)'$`, tc.POSTRaw)
	sc.Step(`^I GET "([^"]*)"$`, s.get)
	sc.Step(`^I send (GET|POST|PUT|DELETE|PATCH) to "([^"]*)"$`, tc.Do)

	sc.Step(`^the response status should be (\d+)$`, s.statusIs)
	sc.Step(`^the response header "([^"]*)" should equal "([^"]*)"$`, s.headerIs)
	sc.Step(`^the response field "([^"]*)" should (equal|contain) "([^"]*)"$`, s.fieldMatches)
	sc.Step(`^the response field "([^"]*)" should be (present|absent)$`, s.fieldPresence)
}

type steps struct {
	tc TestContext
}

func (s *steps) running() error {
	if err := s.tc.GET("/health/live", nil); err != nil {
		return err
	}
	return s.statusIs(http.StatusOK)
}

func (s *steps) get(path string) error {
	return s.tc.GET(path, nil)
}

func (s *steps) statusIs(want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", want, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *steps) headerIs(name, want string) error {
	if got := s.tc.GetLastResponseHeader(name); got != want {
		return fmt.Errorf("header %s: expected %q but got %q", name, want, got)
	}
	return nil
}

func (s *steps) fieldMatches(path, op, want string) error {
	v, ok, err := s.field(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("field %s not found in response: %s", path, s.tc.GetLastResponseBody())
	}
	got := fmt.Sprint(v)
	if (op == "equal" && got != want) || (op == "contain" && !strings.Contains(got, want)) {
		return fmt.Errorf("field %s: expected to %s %q but got %q", path, op, want, got)
	}
	return nil
}

func (s *steps) fieldPresence(path, want string) error {
	_, ok, err := s.field(path)
	if err != nil {
		return err
	}
	if ok != (want == "present") {
		return fmt.Errorf("field %s should be %s in response: %s", path, want, s.tc.GetLastResponseBody())
	}
	return nil
}

// field resolves a dotted path such as "consent.record.analytics".
func (s *steps) field(path string) (any, bool, error) {
	var data any
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &data); err != nil {
		return nil, false, fmt.Errorf("response is not JSON: %w", err)
	}
	for part := range strings.SplitSeq(path, ".") {
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		if data, ok = obj[part]; !ok {
			return nil, false, nil
		}
	}
	return data, true, nil
}
