// Package smtp sends email over SMTP. net/smtp upgrades the connection with
// STARTTLS whenever the server offers it, which submission servers on port
// 587 do.
package smtp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"consentry/internal/email"
	"consentry/pkg/secrets"
)

// Settings configures the SMTP connection.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password secrets.Secret
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Transport sends messages through a single SMTP relay.
type Transport struct {
	settings Settings
	send     sendFunc
	now      func() time.Time
}

// New creates an SMTP transport. Auth is PLAIN and only used when a username
// is configured.
func New(s Settings) *Transport {
	return &Transport{settings: s, send: smtp.SendMail, now: time.Now}
}

func (t *Transport) Send(ctx context.Context, msg email.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from, _ := mail.ParseAddress(msg.From)
	to, _ := mail.ParseAddress(msg.To)

	raw, err := Build(msg, t.now())
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if t.settings.Username != "" {
		auth = smtp.PlainAuth("", t.settings.Username, t.settings.Password.Reveal(), t.settings.Host)
	}

	addr := net.JoinHostPort(t.settings.Host, strconv.Itoa(t.settings.Port))

	// net/smtp has no context support; run it aside so callers are not held
	// past their deadline.
	done := make(chan error, 1)
	go func() {
		done <- t.send(addr, auth, from.Address, []string{to.Address}, raw)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Build renders msg as a MIME message: an HTML part in quoted-printable,
// followed by one base64 part per attachment.
func Build(msg email.Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	var out bytes.Buffer
	headers := [][2]string{
		{"From", msg.From},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", messageID(msg.From)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/mixed; boundary=" + mw.Boundary()},
	}
	for _, h := range headers {
		fmt.Fprintf(&out, "%s: %s\r\n", h[0], h[1])
	}
	out.WriteString("\r\n")

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType(contentType, map[string]string{"name": a.Filename})},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, a.Content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

// writeBase64 wraps lines at 76 characters (RFC 2045).
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(76, len(encoded))
		if _, err := w.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

func messageID(from string) string {
	domain := "localhost"
	if addr, err := mail.ParseAddress(from); err == nil {
		if at := strings.LastIndex(addr.Address, "@"); at >= 0 {
			domain = addr.Address[at+1:]
		}
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
