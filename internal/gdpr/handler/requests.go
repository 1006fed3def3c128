package handler

import (
	"net/http"
	"strings"

	"consentry/pkg/platform/validation"
)

// SubjectRequest is the body of POST /gdpr/export and POST /gdpr/delete-request.
// Full email and name rules are applied by the service.
type SubjectRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (r *SubjectRequest) Sanitize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

func (r *SubjectRequest) Validate() error {
	if err := validation.CheckStringLength("email", r.Email, validation.MaxEmailLength); err != nil {
		return err
	}
	// a byte bound; the service enforces the character limit
	return validation.CheckStringLength("name", r.Name, 4*validation.MaxNameLength)
}

type confirmQuery struct {
	Token string
	Email string
	Name  string
}

func parseConfirmQuery(r *http.Request) confirmQuery {
	q := r.URL.Query()
	return confirmQuery{
		Token: strings.TrimSpace(q.Get("token")),
		Email: strings.TrimSpace(q.Get("email")),
		Name:  strings.TrimSpace(q.Get("name")),
	}
}
