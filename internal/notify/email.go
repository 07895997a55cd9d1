package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
)

const defaultTimeout = 10 * time.Second

var receipt = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <h1 style="color: #2d5016;">Registration Confirmed!</h1>
  <p>Hi {{.FullName}},</p>
  <p>Thank you for registering as a vendor for the {{.EventName}}. Your payment has been received and your spot is reserved.</p>
  <h2>Registration Details</h2>
  <ul>
    <li><strong>Registration Type:</strong> {{.TierTitle}}</li>
    <li><strong>Number of Spaces:</strong> {{.Spaces}}</li>
    <li><strong>Total Paid:</strong> {{.Total}}</li>
  </ul>
  <h2>Event Information</h2>
  <ul>
    <li><strong>Date:</strong> Saturday, September 13, 2025</li>
    <li><strong>Time:</strong> 9:00 AM - 3:00 PM</li>
    <li><strong>Location:</strong> Sandstone Park, Lyons, CO</li>
    <li><strong>Setup:</strong> Vendors may arrive starting at 7:00 AM</li>
    <li><strong>Tear-down:</strong> All spaces must be cleared by 4:30 PM</li>
  </ul>
  <h2>Reminders</h2>
  <ul>
    <li>Bring your own tables, blankets, canopies and supplies.</li>
    <li>Follow all vendor rules and park regulations.</li>
    <li>Take unsold items and trash with you when you leave.</li>
  </ul>
  <p>See you there!</p>
</body>
</html>`))

type receiptData struct {
	FullName  string
	EventName string
	TierTitle string
	Spaces    int
	Total     string
}

func RenderReceipt(eventName string, c Confirmation) (string, error) {
	var buf bytes.Buffer
	err := receipt.Execute(&buf, receiptData{
		FullName:  c.FullName,
		EventName: eventName,
		TierTitle: domain.Tier(c.RegistrationType).Title(),
		Spaces:    c.NumberOfSpaces,
		Total:     domain.FormatAmount(c.TotalAmount),
	})
	if err != nil {
		return "", errors.Wrap(err, "render receipt")
	}
	return buf.String(), nil
}

type EmailOptions struct {
	BaseURL   string
	APIKey    string
	From      string
	EventName string
	Client    *http.Client
}

// EmailSender delivers receipts through the Resend REST API.
type EmailSender struct {
	baseURL   string
	apiKey    string
	from      string
	eventName string
	client    *http.Client
}

func NewEmailSender(opts EmailOptions) *EmailSender {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &EmailSender{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		from:      opts.From,
		eventName: opts.EventName,
		client:    client,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send returns the provider's message id.
func (s *EmailSender) Send(ctx context.Context, c Confirmation) (string, error) {
	if c.Email == "" {
		return "", errors.New("confirmation has no recipient")
	}
	html, err := RenderReceipt(s.eventName, c)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(sendRequest{
		From:    s.from,
		To:      []string{c.Email},
		Subject: "Vendor Registration Confirmed - " + s.eventName,
		HTML:    html,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal email")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build email request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send email")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errors.Newf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode email response")
	}
	return out.ID, nil
}

func (s *EmailSender) Notify(ctx context.Context, c Confirmation) error {
	_, err := s.Send(ctx, c)
	return err
}
