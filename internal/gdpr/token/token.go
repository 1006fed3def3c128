// Package token issues and verifies the signed links emailed to data
// subjects. The wire form is "<hex HMAC-SHA256>:<issuedAtMillis>"; the
// signature covers subject, timestamp and action.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"consentry/internal/gdpr/models"
	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/requestcontext"
	"consentry/pkg/secrets"
)

// FutureSkew is how far in the future an issuedAt may lie and still verify.
const FutureSkew = time.Minute

// ErrNoSecret is returned when a Signer is built without a key.
var ErrNoSecret = errors.New("token: signing secret is empty")

// MaxAge returns how long a token for action stays valid.
func MaxAge(action models.Action) time.Duration {
	switch action {
	case models.ActionDelete:
		return 48 * time.Hour
	case models.ActionExport:
		return 24 * time.Hour
	default:
		return 0
	}
}

// SubjectData is the subject string bound into a token: the email for
// export, "email:name" for delete.
func SubjectData(action models.Action, email, name string) string {
	if action == models.ActionDelete {
		return email + ":" + name
	}
	return email
}

// Claims are the verified contents of a token.
type Claims struct {
	Signature string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Signer issues and verifies tokens with one shared secret.
type Signer struct {
	secret secrets.Secret
}

func NewSigner(secret secrets.Secret) (*Signer, error) {
	if secret.IsZero() {
		return nil, ErrNoSecret
	}
	return &Signer{secret: secret}, nil
}

// Issue signs subject for action at the request time carried by ctx.
func (s *Signer) Issue(ctx context.Context, subject string, action models.Action) (string, error) {
	if !action.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown request action")
	}
	issuedAt := requestcontext.Now(ctx).UnixMilli()
	return hex.EncodeToString(s.sign(subject, issuedAt, action)) + ":" + strconv.FormatInt(issuedAt, 10), nil
}

// Verify reports whether tok was issued by this signer for subject and
// action and is still within MaxAge(action). Malformed input is invalid.
func (s *Signer) Verify(ctx context.Context, tok, subject string, action models.Action) bool {
	_, ok := s.Inspect(ctx, tok, subject, action)
	return ok
}

// Inspect is Verify that also returns the claims of a valid token.
func (s *Signer) Inspect(ctx context.Context, tok, subject string, action models.Action) (Claims, bool) {
	maxAge := MaxAge(action)
	if maxAge == 0 {
		return Claims{}, false
	}

	sigHex, millisStr, ok := split(tok)
	if !ok {
		return Claims{}, false
	}
	issuedAt, err := strconv.ParseInt(millisStr, 10, 64)
	if err != nil || issuedAt < 0 {
		return Claims{}, false
	}
	// exact lowercase match: a case change is a different token
	want := hex.EncodeToString(s.sign(subject, issuedAt, action))
	if !hmac.Equal([]byte(sigHex), []byte(want)) {
		return Claims{}, false
	}

	issued := time.UnixMilli(issuedAt).UTC()
	age := requestcontext.Now(ctx).Sub(issued)
	if age > maxAge || age < -FutureSkew {
		return Claims{}, false
	}
	return Claims{
		Signature: sigHex,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(maxAge),
	}, true
}

func (s *Signer) sign(subject string, issuedAt int64, action models.Action) []byte {
	mac := hmac.New(sha256.New, s.secret.Value())
	mac.Write([]byte(subject + ":" + strconv.FormatInt(issuedAt, 10) + ":" + string(action)))
	return mac.Sum(nil)
}

// split accepts exactly two non-empty parts; the timestamp must be digits only.
func split(tok string) (sig, millis string, ok bool) {
	parts := strings.Split(tok, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	for _, r := range parts[1] {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	return parts[0], parts[1], true
}

// Redacted wraps a token for logging; only a short prefix is printed.
type Redacted string

func (r Redacted) LogValue() slog.Value {
	if len(r) <= 8 {
		return slog.StringValue(secrets.Marker)
	}
	return slog.StringValue(string(r[:8]) + "…")
}
