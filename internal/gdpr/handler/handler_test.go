package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentry/internal/gdpr/handler/mocks"
	"consentry/internal/gdpr/models"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decodeError(rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	var body httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *HandlerSuite) TestRequestExport() {
	s.service.EXPECT().RequestExport(gomock.Any(), "jane@example.com", "Jane").
		Return(&models.RequestResult{Message: "sent", RequestID: "r-1", ValidFor: "24 hours"}, nil)

	rec := s.do(http.MethodPost, "/gdpr/export", `{"email":" jane@example.com ","name":"Jane"}`)
	s.Equal(http.StatusAccepted, rec.Code)
	s.JSONEq(`{"message":"sent","requestId":"r-1","validFor":"24 hours"}`, rec.Body.String())
}

func (s *HandlerSuite) TestRequestDeletion() {
	s.service.EXPECT().RequestDeletion(gomock.Any(), "jane@example.com", "Jane Doe").
		Return(&models.RequestResult{Message: "maybe sent", RequestID: "r-2", ValidFor: "48 hours"}, nil)

	rec := s.do(http.MethodPost, "/gdpr/delete-request", `{"email":"jane@example.com","name":"Jane Doe"}`)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"message":"maybe sent","requestId":"r-2","validFor":"48 hours"}`, rec.Body.String())
}

func (s *HandlerSuite) TestRequestBodyErrors() {
	s.Run("malformed json", func() {
		rec := s.do(http.MethodPost, "/gdpr/export", `{"email":`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("bad_request", s.decodeError(rec).Error)
	})

	s.Run("oversized email", func() {
		rec := s.do(http.MethodPost, "/gdpr/delete-request", `{"email":"`+strings.Repeat("a", 300)+`@example.com","name":"Jane"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("service validation error", func() {
		s.service.EXPECT().RequestExport(gomock.Any(), "nope", "Jane").
			Return(nil, dErrors.New(dErrors.CodeValidation, "email must be a valid email"))
		rec := s.do(http.MethodPost, "/gdpr/export", `{"email":"nope","name":"Jane"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		body := s.decodeError(rec)
		s.Equal("bad_request", body.Error)
		s.Equal("email must be a valid email", body.ErrorDescription)
	})

	s.Run("transport failure hides details", func() {
		s.service.EXPECT().RequestExport(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "smtp: 535 authentication failed"))
		rec := s.do(http.MethodPost, "/gdpr/export", `{"email":"jane@example.com","name":"Jane"}`)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "smtp")
	})
}

func (s *HandlerSuite) TestConfirmExport() {
	exportedAt := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	s.service.EXPECT().ConfirmExport(gomock.Any(), "abc:123", "jane+x@example.com").
		Return(&models.ExportResult{Message: "done", ExportedAt: exportedAt}, nil)

	rec := s.do(http.MethodGet, "/gdpr/export/confirm?token=abc%3A123&email=jane%2Bx%40example.com", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"message":"done","exportedAt":"2025-05-10T08:00:00Z"}`, rec.Body.String())
}

func (s *HandlerSuite) TestConfirmDeletion() {
	deletedAt := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	s.service.EXPECT().ConfirmDeletion(gomock.Any(), "abc:123", "jane@example.com", "Jane Doe").
		Return(&models.DeletionResult{Message: "deleted", DeletedAt: deletedAt, ReferenceID: "ref-1"}, nil)

	rec := s.do(http.MethodGet, "/gdpr/delete-request/confirm?token=abc:123&email=jane@example.com&name=Jane+Doe", "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"message":"deleted","deletedAt":"2025-05-10T08:00:00Z","referenceId":"ref-1"}`, rec.Body.String())
}

func (s *HandlerSuite) TestConfirmErrors() {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing params", dErrors.New(dErrors.CodeBadRequest, "invalid parameters"), http.StatusBadRequest, "bad_request"},
		{"bad token", dErrors.New(dErrors.CodeInvalidToken, "invalid or expired token"), http.StatusBadRequest, "invalid_token"},
		{"unknown subject", dErrors.New(dErrors.CodeNotFound, "subject not found"), http.StatusNotFound, "not_found"},
		{"adapter failure", dErrors.New(dErrors.CodeInternal, "failed to delete subject"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.service.EXPECT().ConfirmDeletion(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err)
			rec := s.do(http.MethodGet, "/gdpr/delete-request/confirm?token=t&email=e", "")
			s.Equal(tt.wantStatus, rec.Code)
			s.Equal(tt.wantCode, s.decodeError(rec).Error)
		})
	}
}

func (s *HandlerSuite) TestRequestLimitWrapsSubmissionsOnly() {
	var limited []string
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited = append(limited, r.URL.Path)
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	s.router = chi.NewRouter()
	New(s.service, nil, WithRequestLimit(mw)).Register(s.router)

	s.Equal(http.StatusTooManyRequests, s.do(http.MethodPost, "/gdpr/export", `{"email":"a@example.com"}`).Code)
	s.Equal(http.StatusTooManyRequests, s.do(http.MethodPost, "/gdpr/delete-request", `{"email":"a@example.com"}`).Code)

	s.service.EXPECT().ConfirmExport(gomock.Any(), "t", "a@example.com").
		Return(&models.ExportResult{Message: "done"}, nil)
	s.do(http.MethodGet, "/gdpr/export/confirm?token=t&email=a@example.com", "")

	s.Equal([]string{"/gdpr/export", "/gdpr/delete-request"}, limited)
}
