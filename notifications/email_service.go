package notifications

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoMailer sends transactional email through the Brevo HTTP API.
type BrevoMailer struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewBrevoMailer returns nil when any setting is missing; a nil mailer
// skips sends.
func NewBrevoMailer(apiKey, senderEmail, senderName string) *BrevoMailer {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		log.Println("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		return nil
	}
	log.Printf("✅ Email service initialized (sender %s).", senderEmail)
	return &BrevoMailer{APIKey: apiKey, SenderEmail: senderEmail, SenderName: senderName, Endpoint: brevoEndpoint}
}

func (m *BrevoMailer) Send(toName, toEmail, subject, htmlContent string) error {
	if m == nil {
		log.Println("Email client not initialized, skipping email send.")
		return nil
	}
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}
	if toName == "" {
		toName = toEmail[:strings.Index(toEmail, "@")]
	}

	body, err := json.Marshal(brevoPayload{
		Sender:      map[string]string{"name": m.SenderName, "email": m.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": toName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	a := fiber.Post(m.Endpoint).
		Set("api-key", m.APIKey).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		ContentType(fiber.MIMEApplicationJSON).
		Timeout(10 * time.Second).
		Body(body)
	code, respBody, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("failed to send request: %w", errors.Join(errs...))
	}
	if code != fiber.StatusCreated {
		return fmt.Errorf("failed to send email via Brevo: status %d: %s", code, string(respBody))
	}

	log.Printf("✅ Email sent successfully to %s", toEmail)
	return nil
}
