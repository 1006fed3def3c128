// Package policy decides whether a category-tagged action may run under a
// visitor's consent record. It is the single gate consulted by script
// loading, event tracking and conditional rendering.
package policy

import (
	"strings"

	"consentry/internal/consent/models"
)

// Policy is the gating decision. Strict is the only production implementation;
// the interface lets callers substitute a fake.
type Policy interface {
	IsAllowed(record *models.Record, category models.Category) bool
}

// Strict denies every optional category unless the record grants it.
type Strict struct{}

func (Strict) IsAllowed(record *models.Record, category models.Category) bool {
	return IsAllowed(record, category)
}

// IsAllowed reports whether category may run. Necessary is always allowed.
// Any other category needs a record that grants it; a nil record or an
// unknown category is denied.
func IsAllowed(record *models.Record, category models.Category) bool {
	switch category {
	case models.CategoryNecessary:
		return true
	case models.CategoryAnalytics, models.CategoryMarketing, models.CategoryFunctional:
		return record != nil && record.Granted(category)
	default:
		return false
	}
}

// ClassifyScript maps a third-party script URL to the category that gates it.
// Unrecognised URLs are treated as necessary.
func ClassifyScript(src string) models.Category {
	s := strings.ToLower(src)
	switch {
	case strings.Contains(s, "googletagmanager"), strings.Contains(s, "google-analytics"):
		return models.CategoryAnalytics
	case strings.Contains(s, "facebook.net"), strings.Contains(s, "fbevents"):
		return models.CategoryMarketing
	case strings.Contains(s, "hotjar"), strings.Contains(s, "intercom"), strings.Contains(s, "zendesk"):
		return models.CategoryFunctional
	default:
		return models.CategoryNecessary
	}
}

// ClassifyCookie maps a cookie name to its category. Unrecognised names are
// treated as necessary.
func ClassifyCookie(name string) models.Category {
	switch {
	case strings.HasPrefix(name, "_ga"), strings.HasPrefix(name, "_gid"), strings.HasPrefix(name, "_gat"):
		return models.CategoryAnalytics
	case strings.HasPrefix(name, "_fb"), strings.Contains(name, "facebook"):
		return models.CategoryMarketing
	case strings.HasPrefix(name, "_hj"):
		return models.CategoryFunctional
	default:
		return models.CategoryNecessary
	}
}
