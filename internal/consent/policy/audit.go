package policy

import (
	"fmt"
	"math"
	"time"

	"consentry/internal/consent/models"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Issue is one compliance finding.
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Fix         string   `json:"fix"`
}

// AuditInput is a snapshot of one page: the stored decision and what is
// actually running.
type AuditInput struct {
	Envelope *models.Envelope
	Scripts  []string
	Cookies  []string
	Now      time.Time
}

// Report summarises how well a page honours the stored decision.
type Report struct {
	GeneratedAt         time.Time      `json:"generatedAt"`
	Consent             *models.Record `json:"consentStatus,omitempty"`
	Score               int            `json:"score"`
	Issues              []Issue        `json:"issues"`
	Recommendations     []string       `json:"recommendations"`
	UnauthorizedScripts []string       `json:"unauthorizedScripts,omitempty"`
}

const maxAuditPoints = 10

// Audit scores a page out of 100. Points: 3 for a stored decision, 2 when it
// is younger than models.ConsentMaxAge, 3 when no script runs without consent.
// A page below the maximum gets 2 more points plus standing recommendations.
func Audit(in AuditInput) Report {
	report := Report{
		GeneratedAt:     in.Now.UTC(),
		Issues:          []Issue{},
		Recommendations: []string{},
	}

	var record *models.Record
	points := 0

	if in.Envelope != nil {
		prefs := in.Envelope.Preferences
		record = &prefs
		report.Consent = record
		points += 3
	} else {
		report.Issues = append(report.Issues, Issue{
			Severity:    SeverityHigh,
			Category:    "consent",
			Description: "visitor has no stored consent",
			Fix:         "show the consent banner",
		})
	}

	if in.Envelope != nil && !in.Envelope.SavedAt.IsZero() {
		if in.Envelope.Expired(in.Now, models.ConsentMaxAge) {
			report.Issues = append(report.Issues, Issue{
				Severity:    SeverityMedium,
				Category:    "expiration",
				Description: "consent is older than 12 months",
				Fix:         "ask the visitor to renew consent",
			})
		} else {
			points += 2
		}
	}

	for _, src := range in.Scripts {
		if !IsAllowed(record, ClassifyScript(src)) {
			report.UnauthorizedScripts = append(report.UnauthorizedScripts, src)
		}
	}
	if len(report.UnauthorizedScripts) == 0 {
		points += 3
	} else {
		report.Issues = append(report.Issues, Issue{
			Severity:    SeverityCritical,
			Category:    "unauthorized_scripts",
			Description: fmt.Sprintf("%d scripts loaded without consent", len(report.UnauthorizedScripts)),
			Fix:         "gate script loading on consent",
		})
	}

	flagged := make(map[models.Category]bool)
	for _, name := range in.Cookies {
		c := ClassifyCookie(name)
		if c == models.CategoryNecessary || flagged[c] || IsAllowed(record, c) {
			continue
		}
		flagged[c] = true
		report.Issues = append(report.Issues, Issue{
			Severity:    SeverityHigh,
			Category:    "unauthorized_cookies",
			Description: fmt.Sprintf("%s cookies set without consent", c),
			Fix:         fmt.Sprintf("delete or anonymize %s cookies", c),
		})
	}

	if points < maxAuditPoints {
		points += 2
		report.Recommendations = append(report.Recommendations,
			"run a GDPR audit regularly",
			"monitor consent events",
		)
	}

	report.Score = int(math.Round(float64(points) / maxAuditPoints * 100))
	return report
}
