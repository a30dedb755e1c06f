package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultEmailURL is the Brevo transactional email endpoint.
const DefaultEmailURL = "https://api.brevo.com/v3/smtp/email"

// EmailNotifier sends transactional email through the Brevo HTTP API.
type EmailNotifier struct {
	url        string
	apiKey     string
	fromEmail  string
	fromName   string
	httpClient *http.Client
}

// NewEmailNotifier builds an email client. An empty url selects DefaultEmailURL.
func NewEmailNotifier(url, apiKey, fromEmail, fromName string) *EmailNotifier {
	if url == "" {
		url = DefaultEmailURL
	}
	return &EmailNotifier{
		url:        url,
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		fromName:   fromName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type emailRequest struct {
	Sender      emailAddress   `json:"sender"`
	To          []emailAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	TextContent string         `json:"textContent,omitempty"`
}

// Send delivers message to message.Destination.
func (e *EmailNotifier) Send(ctx context.Context, message Message) error {
	if message.Destination == "" || message.Subject == "" {
		return fmt.Errorf("email destination and subject are required")
	}
	if message.HTML == "" && message.Body == "" {
		return fmt.Errorf("email content is required")
	}

	body, err := json.Marshal(emailRequest{
		Sender:      emailAddress{Email: e.fromEmail, Name: e.fromName},
		To:          []emailAddress{{Email: message.Destination}},
		Subject:     message.Subject,
		HTMLContent: message.HTML,
		TextContent: message.Body,
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email api error: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
