package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hermosa/pos-api/internal/resilience"
)

// DefaultBrevoBaseURL is the production endpoint of the Brevo API.
const DefaultBrevoBaseURL = "https://api.brevo.com"

// BrevoSender delivers transactional email through the Brevo SMTP API.
type BrevoSender struct {
	HTTP      resilience.HTTPClient
	BaseURL   string
	APIKey    string
	FromEmail string
	FromName  string
}

type brevoRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoMessage struct {
	Sender      brevoRecipient   `json:"sender"`
	To          []brevoRecipient `json:"to"`
	Subject     string           `json:"subject"`
	HTMLContent string           `json:"htmlContent"`
}

// Send posts the message to /v3/smtp/email. Any non-2xx response is an error.
func (s BrevoSender) Send(ctx context.Context, to, subject, html string) error {
	if strings.TrimSpace(s.APIKey) == "" {
		return errors.New("notify: brevo api key not configured")
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("notify: recipient is required")
	}
	base := s.BaseURL
	if base == "" {
		base = DefaultBrevoBaseURL
	}
	body, err := json.Marshal(brevoMessage{
		Sender:      brevoRecipient{Email: s.FromEmail, Name: s.FromName},
		To:          []brevoRecipient{{Email: to}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", s.APIKey)

	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("notify: brevo request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: brevo responded %s", resp.Status)
	}
	return nil
}
