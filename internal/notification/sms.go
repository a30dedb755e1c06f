package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SMSNotifier posts text messages to an HTTP SMS gateway using a bearer token.
type SMSNotifier struct {
	url        string
	token      string
	from       string
	httpClient *http.Client
}

// NewSMSNotifier builds an SMS gateway client.
func NewSMSNotifier(url, token, from string) *SMSNotifier {
	return &SMSNotifier{
		url:        url,
		token:      token,
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsRequest struct {
	MobilePhone string `json:"mobile_phone"`
	Message     string `json:"message"`
	From        string `json:"from,omitempty"`
}

// Send delivers message.Body to message.Destination.
func (s *SMSNotifier) Send(ctx context.Context, message Message) error {
	if message.Destination == "" || message.Body == "" {
		return fmt.Errorf("sms destination and body are required")
	}

	body, err := json.Marshal(smsRequest{
		MobilePhone: strings.TrimPrefix(message.Destination, "+"),
		Message:     message.Body,
		From:        s.from,
	})
	if err != nil {
		return fmt.Errorf("encode sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
