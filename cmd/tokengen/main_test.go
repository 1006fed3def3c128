package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentry/internal/gdpr/models"
	"consentry/internal/gdpr/token"
	"consentry/internal/platform/config"
	"consentry/pkg/requestcontext"
	"consentry/pkg/secrets"
)

var issuedAt = time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

func TestGenerateVerifiesWithServerSigner(t *testing.T) {
	out, err := generate(linkParams{
		action:  models.ActionDelete,
		email:   "demo@example.com",
		name:    "Demo User",
		siteURL: "https://shop.example",
		at:      issuedAt,
	})
	require.NoError(t, err)
	assert.True(t, out.DevSecret)
	assert.Equal(t, issuedAt.Add(48*time.Hour), out.ExpiresAt)

	link, err := url.Parse(out.Link)
	require.NoError(t, err)
	assert.Equal(t, "/gdpr/delete-request/confirm", link.Path)
	assert.Equal(t, "Demo User", link.Query().Get("name"))

	signer, err := token.NewSigner(secrets.New(config.DevSecret))
	require.NoError(t, err)
	ctx := requestcontext.WithTime(context.Background(), issuedAt.Add(time.Hour))
	assert.True(t, signer.Verify(ctx, link.Query().Get("token"), "demo@example.com:Demo User", models.ActionDelete))
}

func TestGenerateRequiresFlags(t *testing.T) {
	_, err := generate(linkParams{action: models.ActionExport, at: issuedAt})
	assert.Error(t, err)

	_, err = generate(linkParams{action: models.ActionDelete, email: "demo@example.com", at: issuedAt})
	assert.Error(t, err)
}

func TestRunLinkJSON(t *testing.T) {
	t.Setenv("GDPR_SECRET", "s3cret")
	var buf bytes.Buffer

	err := runLink(&buf, models.ActionExport, []string{
		"-email", " demo@example.com ", "-at", "2025-05-10T08:00:00Z", "-site-url", "https://shop.example", "-json",
	})
	require.NoError(t, err)

	var out linkOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.False(t, out.DevSecret)
	assert.Equal(t, models.ActionExport, out.Action)
	assert.Contains(t, out.Link, "https://shop.example/gdpr/export/confirm?email=demo%40example.com")
	assert.NotContains(t, out.Link, "name=")
}

func TestPrintUsageKeepsDateDirectives(t *testing.T) {
	var out bytes.Buffer
	printUsage(&out)
	assert.Contains(t, out.String(), "+%Y-%m-%dT%H:%M:%SZ")
	assert.True(t, strings.HasSuffix(out.String(), "more information about a command.\n"))
}
