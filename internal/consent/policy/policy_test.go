package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/consent/models"
)

func allRecords() []models.Record {
	var out []models.Record
	for _, a := range []bool{false, true} {
		for _, m := range []bool{false, true} {
			for _, f := range []bool{false, true} {
				out = append(out, models.Selection(a, m, f))
			}
		}
	}
	return out
}

func TestIsAllowed_AbsentRecordDeniesOptional(t *testing.T) {
	for _, c := range models.AllCategories() {
		if c == models.CategoryNecessary {
			continue
		}
		assert.False(t, IsAllowed(nil, c), c)
	}
}

func TestIsAllowed_NecessaryAlwaysAllowed(t *testing.T) {
	assert.True(t, IsAllowed(nil, models.CategoryNecessary))
	for _, r := range allRecords() {
		assert.True(t, IsAllowed(&r, models.CategoryNecessary))
	}
	assert.True(t, IsAllowed(&models.Record{}, models.CategoryNecessary))
}

func TestIsAllowed_MatchesRecord(t *testing.T) {
	for _, r := range allRecords() {
		assert.Equal(t, r.Analytics, IsAllowed(&r, models.CategoryAnalytics))
		assert.Equal(t, r.Marketing, IsAllowed(&r, models.CategoryMarketing))
		assert.Equal(t, r.Functional, IsAllowed(&r, models.CategoryFunctional))
	}
}

func TestIsAllowed_UnknownCategoryDenied(t *testing.T) {
	r := models.AcceptAll()
	assert.False(t, IsAllowed(&r, models.Category("legitimate_interest")))
	assert.False(t, Strict{}.IsAllowed(&r, ""))
}

func TestClassifyScript(t *testing.T) {
	tests := map[string]models.Category{
		"https://www.googletagmanager.com/gtag/js?id=G-TEST":  models.CategoryAnalytics,
		"https://www.google-analytics.com/analytics.js":       models.CategoryAnalytics,
		"https://connect.facebook.net/en_US/fbevents.js":      models.CategoryMarketing,
		"https://static.hotjar.com/c/hotjar-1.js?sv=6":        models.CategoryFunctional,
		"https://widget.intercom.io/widget/abc":               models.CategoryFunctional,
		"https://static.zdassets.com/ekr/snippet.js?zendesk=": models.CategoryFunctional,
		"/static/app.js":                                      models.CategoryNecessary,
	}
	for src, want := range tests {
		assert.Equal(t, want, ClassifyScript(src), src)
	}
}

func TestClassifyCookie(t *testing.T) {
	tests := map[string]models.Category{
		"_ga":            models.CategoryAnalytics,
		"_ga_ABC123":     models.CategoryAnalytics,
		"_gid":           models.CategoryAnalytics,
		"_gat_UA":        models.CategoryAnalytics,
		"_fbp":           models.CategoryMarketing,
		"facebook_token": models.CategoryMarketing,
		"_hjSessionUser": models.CategoryFunctional,
		"JSESSIONID":     models.CategoryNecessary,
		"cookie-consent": models.CategoryNecessary,
	}
	for name, want := range tests {
		assert.Equal(t, want, ClassifyCookie(name), name)
	}
}

func TestAudit(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no consent and tracking running", func(t *testing.T) {
		report := Audit(AuditInput{
			Scripts: []string{"https://www.googletagmanager.com/gtag/js"},
			Cookies: []string{"_ga", "_gid", "_fbp"},
			Now:     now,
		})

		// 0 points, then 2 for falling short.
		assert.Equal(t, 20, report.Score)
		assert.Nil(t, report.Consent)
		require.Len(t, report.UnauthorizedScripts, 1)
		assert.Len(t, report.Recommendations, 2)

		severities := map[Severity]int{}
		for _, issue := range report.Issues {
			severities[issue.Severity]++
		}
		assert.Equal(t, 1, severities[SeverityCritical])
		assert.Equal(t, 3, severities[SeverityHigh], "missing consent plus one per cookie category")
	})

	t.Run("fresh consent, compliant page", func(t *testing.T) {
		env := models.NewEnvelope(models.Selection(true, false, false), models.MethodBanner, now.Add(-24*time.Hour))
		report := Audit(AuditInput{
			Envelope: &env,
			Scripts:  []string{"https://www.googletagmanager.com/gtag/js", "/static/app.js"},
			Cookies:  []string{"_ga", "session"},
			Now:      now,
		})

		// 3 + 2 + 3 leaves the page short of the maximum, which always
		// adds the standing recommendations.
		assert.Equal(t, 100, report.Score)
		assert.Empty(t, report.Issues)
		assert.Len(t, report.Recommendations, 2)
	})

	t.Run("stale consent", func(t *testing.T) {
		env := models.NewEnvelope(models.AcceptAll(), models.MethodBanner, now.Add(-400*24*time.Hour))
		report := Audit(AuditInput{Envelope: &env, Now: now})

		// 3 + 3, then 2 for falling short.
		assert.Equal(t, 80, report.Score)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, "expiration", report.Issues[0].Category)
	})
}
