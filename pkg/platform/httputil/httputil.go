package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "consentry/pkg/domain-errors"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates domain errors into HTTP responses.
// Server-side failures never echo their message to the client.
func WriteError(w http.ResponseWriter, err error) {
	domainErr, ok := dErrors.As(err)
	if !ok {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: DomainCodeToHTTPCode(dErrors.CodeInternal)})
		return
	}

	status := DomainCodeToHTTPStatus(domainErr.Code)
	response := ErrorResponse{Error: DomainCodeToHTTPCode(domainErr.Code)}
	if status < http.StatusInternalServerError {
		response.ErrorDescription = domainErr.Message
	}
	WriteJSON(w, status, response)
}

// StatusOf returns the HTTP status WriteError would use for err.
func StatusOf(err error) int {
	return DomainCodeToHTTPStatus(dErrors.CodeOf(err))
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvalidToken:
		return http.StatusBadRequest
	case dErrors.CodeMissingConsent:
		return http.StatusForbidden
	case dErrors.CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the "error" field of the JSON body.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return "bad_request"
	case dErrors.CodeInvalidToken:
		return "invalid_token"
	case dErrors.CodeMissingConsent:
		return "missing_consent"
	case dErrors.CodeMethodNotAllowed:
		return "method_not_allowed"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}
