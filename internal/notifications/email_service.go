package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoService delivers transactional email through Brevo templates.
// Rendering happens on Brevo's side; this client only passes params.
type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Templates   map[string]int64
	Endpoint    string
	httpClient  *http.Client
}

type brevoPayload struct {
	Sender     map[string]string   `json:"sender"`
	To         []map[string]string `json:"to"`
	TemplateID int64               `json:"templateId"`
	Params     map[string]string   `json:"params,omitempty"`
	Tags       []string            `json:"tags,omitempty"`
}

// NewBrevoService returns nil when the service is not configured
func NewBrevoService(apiKey, senderEmail, senderName string, templates map[string]int64) *BrevoService {
	if apiKey == "" || senderEmail == "" {
		log.Println("⚠️ Email service not configured. Missing API Key or Sender Email.")
		return nil
	}

	return &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Templates:   templates,
		Endpoint:    brevoEndpoint,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers template to one recipient. A nil error means Brevo accepted it.
func (s *BrevoService) Send(ctx context.Context, to, template string, data map[string]string) error {
	if to == "" || !strings.Contains(to, "@") {
		return fmt.Errorf("invalid recipient email: %s", to)
	}

	templateID, ok := s.Templates[template]
	if !ok || templateID == 0 {
		return fmt.Errorf("no Brevo template configured for %q", template)
	}

	payload := brevoPayload{
		Sender:     map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:         []map[string]string{{"email": to}},
		TemplateID: templateID,
		Params:     data,
		Tags:       []string{template},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("brevo rejected email (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return nil
}
