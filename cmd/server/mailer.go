package main

import (
	"log/slog"
	"net/http"
	"time"

	"consentry/internal/email"
	"consentry/internal/email/postmark"
	"consentry/internal/email/smtp"
	"consentry/internal/platform/config"
	"consentry/pkg/platform/circuit"
)

const postmarkClientTimeout = 10 * time.Second

// newMailer builds the configured transport behind a circuit breaker.
func newMailer(cfg config.Server, log *slog.Logger) *email.Resilient {
	var transport email.Transport
	switch cfg.Email.Transport {
	case "smtp":
		transport = smtp.New(smtp.Settings{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
	case "postmark":
		transport = postmark.New(&http.Client{Timeout: postmarkClientTimeout}, postmark.Settings{
			APIURL:        cfg.Postmark.Endpoint,
			ServerToken:   cfg.Postmark.ServerToken,
			MessageStream: cfg.Postmark.MessageStream,
		})
	default:
		transport = email.NewLogTransport(log)
	}

	return email.NewResilient(transport, "email."+cfg.Email.Transport, circuit.Settings{
		FailureThreshold: cfg.Email.BreakerThreshold,
		Cooldown:         cfg.Email.BreakerCooldown,
	}, log)
}
