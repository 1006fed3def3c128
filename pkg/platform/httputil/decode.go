package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
)

// Sanitizer strips input that must never reach a service, such as control
// characters.
type Sanitizer interface {
	Sanitize()
}

// Normalizer canonicalizes input, e.g. trimming or lowercasing.
type Normalizer interface {
	Normalize()
}

// Validator rejects input after sanitizing and normalizing.
type Validator interface {
	Validate() error
}

// Prepare runs Sanitize, Normalize and Validate on req, in that order, for
// whichever of them req implements.
func Prepare(req any) error {
	if s, ok := req.(Sanitizer); ok {
		s.Sanitize()
	}
	if n, ok := req.(Normalizer); ok {
		n.Normalize()
	}
	if v, ok := req.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// DecodeJSON reads exactly one JSON value from the body into a new T. On
// failure it writes a 400 and returns false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&req)
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON value")
	}
	if err == nil {
		return &req, true
	}

	ctx := r.Context()
	logger.WarnContext(ctx, "failed to decode request body",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
	case errors.Is(err, io.EOF):
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is required"))
	default:
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
	}
	return nil, false
}

// DecodeAndPrepare decodes the body and then runs Prepare on it. Validation
// failures that are not domain errors are reported as CodeValidation.
//
//	req, ok := httputil.DecodeAndPrepare[SubjectRequest](w, r, h.logger)
//	if !ok {
//		return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	if err := Prepare(req); err != nil {
		ctx := r.Context()
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		if !dErrors.IsDomain(err) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return req, true
}
