// Package mailer sends the photo-upload link to the caller's email. With no
// API key configured it logs the link instead, which is what local
// development runs on.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/rgaros/fixline/internal/speech"
)

const sendgridAPIURL = "https://api.sendgrid.com/v3/mail/send"

// Mailer delivers upload-link emails.
type Mailer interface {
	SendUploadLink(ctx context.Context, to, uploadURL string, appliance speech.Appliance) error
}

// SendGridMailer implements Mailer against SendGrid's v3 send endpoint.
type SendGridMailer struct {
	apiKey     string
	fromEmail  string
	logger     *log.Logger
	httpClient *http.Client
}

type Config struct {
	APIKey    string
	FromEmail string
	Logger    *log.Logger
}

func New(cfg Config) *SendGridMailer {
	from := cfg.FromEmail
	if from == "" {
		from = "noreply@fixline.example.com"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &SendGridMailer{
		apiKey:     cfg.APIKey,
		fromEmail:  from,
		logger:     logger,
		httpClient: &http.Client{},
	}
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type emailAddress struct {
	Email string `json:"email"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

const uploadSubject = "Fixline Home Services - Upload Photo for Diagnosis"

const uploadBodyFmt = `Hello,

Thank you for calling Fixline Home Services. To help us better diagnose the issue%s, please upload a photo of your appliance showing the problem area.

Click the link below to upload your photo:
%s

This link will expire in 24 hours.

Tips for a helpful photo:
- Show any error codes or warning lights on the display
- Capture any visible damage, leaks, or frost buildup
- Include the model number label if possible

After you upload, our system will analyze the image and provide additional troubleshooting suggestions.

Thank you,
Fixline Home Services Team
`

// SendUploadLink emails the upload URL. Without an API key it logs the link
// and reports success so the dialogue proceeds the same either way.
func (m *SendGridMailer) SendUploadLink(ctx context.Context, to, uploadURL string, appliance speech.Appliance) error {
	applianceText := ""
	if appliance != speech.ApplianceNone {
		applianceText = " for your " + string(appliance)
	}
	body := fmt.Sprintf(uploadBodyFmt, applianceText, uploadURL)

	if m.apiKey == "" {
		m.logger.Printf("mailer: dev mode, email to %s not sent; upload link: %s", to, uploadURL)
		return nil
	}

	req := sendRequest{
		Personalizations: []personalization{{To: []emailAddress{{Email: to}}}},
		From:             emailAddress{Email: m.fromEmail},
		Subject:          uploadSubject,
		Content:          []mailContent{{Type: "text/plain", Value: body}},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", sendgridAPIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SendGrid API error: %s - %s", resp.Status, string(respBody))
	}

	m.logger.Printf("mailer: upload link sent to %s", to)
	return nil
}
