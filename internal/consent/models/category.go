package models

import (
	dErrors "consentry/pkg/domain-errors"
)

// Category labels what a script, cookie or tracking call is used for.
// Consent is granted per category.
type Category string

const (
	CategoryNecessary  Category = "necessary"
	CategoryAnalytics  Category = "analytics"
	CategoryMarketing  Category = "marketing"
	CategoryFunctional Category = "functional"
)

// AllCategories lists every category in display order.
func AllCategories() []Category {
	return []Category{CategoryNecessary, CategoryAnalytics, CategoryMarketing, CategoryFunctional}
}

// IsValid checks if the category is one of the supported enum values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryNecessary, CategoryAnalytics, CategoryMarketing, CategoryFunctional:
		return true
	}
	return false
}

// ParseCategory converts an external string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown consent category")
	}
	return c, nil
}

// Method records which UI surface produced a consent decision.
type Method string

const (
	MethodBanner   Method = "banner"
	MethodSettings Method = "settings"
	MethodAPI      Method = "api"
)

// IsValid checks if the method is one of the supported enum values.
func (m Method) IsValid() bool {
	return m == MethodBanner || m == MethodSettings || m == MethodAPI
}
