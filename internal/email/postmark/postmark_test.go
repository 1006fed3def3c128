package postmark

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/email"
	"consentry/pkg/secrets"
)

func message() email.Message {
	return email.Message{
		From:     "gdpr@shop.example",
		To:       "jane.doe@example.com",
		Subject:  "Your personal data export",
		HTMLBody: "<p>attached</p>",
		Attachments: []email.Attachment{{
			Filename:    "export.csv",
			ContentType: "text/csv",
			Content:     []byte("a,b\r\n"),
		}},
	}
}

func TestSend(t *testing.T) {
	var got map[string]any
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Postmark-Server-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"abc"}`))
	}))
	defer srv.Close()

	tr := New(srv.Client(), Settings{APIURL: srv.URL, ServerToken: secrets.New("server-token"), MessageStream: "outbound"})
	require.NoError(t, tr.Send(context.Background(), message()))

	assert.Equal(t, "server-token", token)
	assert.Equal(t, "jane.doe@example.com", got["To"])
	assert.Equal(t, "<p>attached</p>", got["HtmlBody"])
	assert.Equal(t, "outbound", got["MessageStream"])

	attachments, ok := got["Attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	a := attachments[0].(map[string]any)
	assert.Equal(t, "export.csv", a["Name"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("a,b\r\n")), a["Content"])
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error code", http.StatusUnprocessableEntity, `{"ErrorCode":300,"Message":"Invalid email request"}`},
		{"server error", http.StatusInternalServerError, `{"ErrorCode":0}`},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := New(srv.Client(), Settings{APIURL: srv.URL, ServerToken: secrets.New("t")})
			assert.Error(t, tr.Send(context.Background(), message()))
		})
	}
}

func TestSendRejectsInvalidMessage(t *testing.T) {
	tr := New(nil, Settings{APIURL: "http://127.0.0.1:0"})
	msg := message()
	msg.From = ""
	assert.ErrorIs(t, tr.Send(context.Background(), msg), email.ErrInvalidMessage)
}
