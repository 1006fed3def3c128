// Package email defines outbound messages and the transports that deliver them.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
)

var ErrInvalidMessage = errors.New("invalid email message")

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a single HTML email.
type Message struct {
	From        string
	To          string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Transport delivers messages. Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Validate checks the message is deliverable: parseable addresses, a
// subject, and named attachments.
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("%w: from: %v", ErrInvalidMessage, err)
	}
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("%w: to: %v", ErrInvalidMessage, err)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidMessage)
	}
	for i, a := range m.Attachments {
		if a.Filename == "" {
			return fmt.Errorf("%w: attachment %d has no filename", ErrInvalidMessage, i)
		}
	}
	return nil
}
