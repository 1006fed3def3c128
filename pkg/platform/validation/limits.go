// Package validation holds the size limits enforced at the HTTP boundary.
package validation

import (
	"fmt"

	dErrors "consentry/pkg/domain-errors"
)

// MaxBodySize caps JSON request bodies (64 KB).
const MaxBodySize = 64 * 1024

// Element counts.
const (
	// MaxAuditItems caps the scripts and cookies listed in one audit request.
	MaxAuditItems = 200
	// MaxTrackParams caps the parameters of one tracking event.
	MaxTrackParams = 50
)

// Byte lengths.
const (
	MaxScriptURLLength  = 2048
	MaxCookieNameLength = 256
	MaxEventNameLength  = 100

	// MaxEmailLength follows the RFC 5321 path limit.
	MaxEmailLength = 254
	// MaxNameLength is in characters; byte checks allow four bytes each.
	MaxNameLength = 100

	// MaxTokenLength bounds a verification token: 64 hex chars, a colon and
	// a millisecond timestamp, with headroom.
	MaxTokenLength = 128
)

func CheckSliceCount(field string, count, max int) error {
	if count <= max {
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", field, max))
}

func CheckStringLength(field, value string, max int) error {
	if len(value) <= max {
		return nil
	}
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", field, max))
}

// CheckEachStringLength reports the first element longer than max, by index.
func CheckEachStringLength(field string, values []string, max int) error {
	for i, v := range values {
		if len(v) > max {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s %d exceeds max length of %d", field, i, max))
		}
	}
	return nil
}
