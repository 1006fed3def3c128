// Package main prints signed confirmation links for local testing of the
// GDPR endpoints. Links are signed with GDPR_SECRET, or the development
// secret when it is unset.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"consentry/internal/gdpr/models"
	"consentry/internal/gdpr/service"
	"consentry/internal/gdpr/token"
	"consentry/internal/platform/config"
	"consentry/pkg/requestcontext"
	"consentry/pkg/secrets"
	str "consentry/pkg/string"
)

const defaultSiteURL = "http://localhost:8080"

type linkOutput struct {
	Action    models.Action `json:"action"`
	Token     string        `json:"token"`
	Link      string        `json:"link"`
	IssuedAt  time.Time     `json:"issued_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	DevSecret bool          `json:"dev_secret"`
}

type linkParams struct {
	action  models.Action
	email   string
	name    string
	siteURL string
	secret  string
	at      time.Time
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export", "delete":
		if err := runLink(os.Stdout, models.Action(os.Args[1]), os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

const usage = `tokengen - Print signed GDPR confirmation links

Usage:
  tokengen <command> [flags]

Commands:
  export    Link for GET /gdpr/export/confirm
  delete    Link for GET /gdpr/delete-request/confirm

Examples:
  tokengen export -email demo@example.com
  tokengen delete -email demo@example.com -name "Demo User"

  # A link issued 25 hours ago, to see the expired-token response
  tokengen export -email demo@example.com -at "$(date -u -d '-25 hours' +%Y-%m-%dT%H:%M:%SZ)"

Use "tokengen <command> -h" for more information about a command.
`

// printUsage writes usage verbatim; it contains date(1) directives.
func printUsage(w io.Writer) {
	_, _ = io.WriteString(w, usage) //nolint:errcheck // best-effort terminal output
}

func runLink(w io.Writer, action models.Action, args []string) error {
	fs := flag.NewFlagSet(string(action), flag.ContinueOnError)
	email := fs.String("email", "", "Subject email (required)")
	name := fs.String("name", "", "Subject name (required for delete)")
	siteURL := fs.String("site-url", envOr("SITE_URL", defaultSiteURL), "Base URL of the server")
	at := fs.String("at", "", "Issue time, RFC 3339. Defaults to now.")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := linkParams{
		action:  action,
		email:   str.Sanitize(*email),
		name:    str.Sanitize(*name),
		siteURL: *siteURL,
		secret:  os.Getenv("GDPR_SECRET"),
		at:      time.Now(),
	}
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("-at: %w", err)
		}
		p.at = t
	}

	out, err := generate(p)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printLink(w, out)
	return nil
}

func generate(p linkParams) (linkOutput, error) {
	if p.email == "" {
		return linkOutput{}, errors.New("-email is required")
	}
	if p.action == models.ActionDelete && p.name == "" {
		return linkOutput{}, errors.New("-name is required for delete")
	}

	devSecret := p.secret == ""
	if devSecret {
		p.secret = config.DevSecret
	}
	signer, err := token.NewSigner(secrets.New(p.secret))
	if err != nil {
		return linkOutput{}, err
	}

	ctx := requestcontext.WithTime(context.Background(), p.at)
	name := p.name
	if p.action != models.ActionDelete {
		name = ""
	}
	tok, err := signer.Issue(ctx, token.SubjectData(p.action, p.email, name), p.action)
	if err != nil {
		return linkOutput{}, err
	}

	issued := time.UnixMilli(p.at.UnixMilli()).UTC()
	return linkOutput{
		Action:    p.action,
		Token:     tok,
		Link:      service.ConfirmLink(p.siteURL, p.action, tok, p.email, p.name),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(token.MaxAge(p.action)),
		DevSecret: devSecret,
	}, nil
}

func printLink(w io.Writer, out linkOutput) {
	fmt.Fprintf(w, "Confirmation link (%s)\n", out.Action)
	fmt.Fprintln(w, "=========================")
	if out.DevSecret {
		fmt.Fprintln(w, "Secret:     development (GDPR_SECRET unset)")
	}
	fmt.Fprintf(w, "Issued At:  %s\n", out.IssuedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Expires At: %s\n", out.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Token:      %s\n", out.Token)
	fmt.Fprintln(w)
	fmt.Fprintln(w, out.Link)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
