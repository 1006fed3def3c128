// Package postmark sends email through the Postmark HTTP API.
package postmark

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"consentry/internal/email"
	"consentry/pkg/secrets"
)

// Settings contains the settings for the Postmark API.
type Settings struct {
	APIURL        string
	ServerToken   secrets.Secret
	MessageStream string
}

// Transport is an email transport backed by the Postmark API.
type Transport struct {
	client   *http.Client
	settings Settings
}

// New creates a new transport.
func New(client *http.Client, s Settings) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{client: client, settings: s}
}

type attachmentJSON struct {
	Name        string
	Content     string
	ContentType string
}

type emailJSON struct {
	From          string
	To            string
	Subject       string
	HtmlBody      string
	MessageStream string           `json:",omitempty"`
	Attachments   []attachmentJSON `json:",omitempty"`
}

type response struct {
	ErrorCode int
	Message   string
	MessageID string
}

// Send sends an email using the Postmark API.
func (t *Transport) Send(ctx context.Context, msg email.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	data := emailJSON{
		From:          msg.From,
		To:            msg.To,
		Subject:       msg.Subject,
		HtmlBody:      msg.HTMLBody,
		MessageStream: t.settings.MessageStream,
	}
	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		data.Attachments = append(data.Attachments, attachmentJSON{
			Name:        a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: contentType,
		})
	}

	var b bytes.Buffer
	if err := json.NewEncoder(&b).Encode(data); err != nil {
		return fmt.Errorf("failed to encode email json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.settings.APIURL, &b)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", t.settings.ServerToken.Reveal())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var res response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&res); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if res.ErrorCode != 0 {
		return fmt.Errorf("postmark error code %d: %s", res.ErrorCode, res.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("postmark request did not succeed, status code %d", resp.StatusCode)
	}
	return nil
}
