// Package validation validates request structs with go-playground/validator
// and reports the first failure as a domain validation error.
package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "consentry/pkg/domain-errors"
	s "consentry/pkg/string"
)

// TagSubjectEmail validates a data-subject email address.
const TagSubjectEmail = "subject_email"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation(TagSubjectEmail, func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	return v
}

// IsEmail reports whether addr is a bare address that matches the simple
// local@domain.tld shape and that net/mail parses back unchanged.
func IsEmail(addr string) bool {
	if !emailPattern.MatchString(addr) {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return false
	}
	return parsed.Name == "" && parsed.Address == addr
}

// Validate checks req against its validate tags. The first failing field is
// reported as a CodeValidation error.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// messages maps a validator tag to the phrase that follows the field name.
var messages = map[string]func(param string) string{
	"required":      func(string) string { return "is required" },
	"notblank":      func(string) string { return "must not be blank" },
	"email":         func(string) string { return "must be a valid email" },
	TagSubjectEmail: func(string) string { return "must be a valid email" },
	"url":           func(string) string { return "must be a valid url" },
	"min":           func(p string) string { return "must be at least " + p + " characters" },
	"max":           func(p string) string { return "must be at most " + p + " characters" },
	"oneof":         func(p string) string { return "must be one of [" + p + "]" },
}

const invalidBody = "invalid request body"

// ErrorMessage renders the first validator failure in err as
// "<snake_field> <phrase>".
func ErrorMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalidBody
	}
	fe := fieldErrs[0]
	name := fe.Field()
	if name == "" {
		name = fe.StructField()
	}
	if name == "" {
		return invalidBody
	}
	phrase := "is invalid"
	if m, ok := messages[fe.ActualTag()]; ok {
		phrase = m(fe.Param())
	}
	return s.ToSnakeCase(name) + " " + phrase
}
