package email

import (
	"context"
	"log/slog"

	"consentry/pkg/platform/privacy"
)

// LogTransport writes messages to the logger instead of sending them. The
// body is logged at debug level only, since verification links are bearer
// credentials. Not meant for production.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a new LogTransport.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

// Send logs the message.
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	t.logger.InfoContext(ctx, "send email",
		"to", privacy.AnonymizeEmail(msg.To),
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)
	t.logger.DebugContext(ctx, "email body", "body", msg.HTMLBody)
	return nil
}
