// Package notify fans out new-lead announcements. Failures are reported to
// the caller but are never fatal to lead capture.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
)

// Notifier announces a newly captured lead.
type Notifier interface {
	NotifyNewLead(ctx context.Context, tenant *domain.Tenant, lead *domain.Lead) error
}

// LogNotifier writes lead announcements to the process log. It is the
// default when no webhook is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) NotifyNewLead(_ context.Context, tenant *domain.Tenant, lead *domain.Lead) error {
	log.Printf("new lead captured: tenant=%s lead=%s email=%q phone=%q score=%d",
		tenant.ID, lead.ID, lead.Email, lead.Phone, lead.Score)
	return nil
}

// WebhookNotifier POSTs lead announcements as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type leadPayload struct {
	TenantID    string `json:"tenant_id"`
	TenantName  string `json:"tenant_name"`
	LeadID      string `json:"lead_id"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Company     string `json:"company,omitempty"`
	Score       int    `json:"score"`
	Temperature string `json:"temperature"`
	Source      string `json:"source"`
	CapturedAt  string `json:"captured_at"`
}

func (n *WebhookNotifier) NotifyNewLead(ctx context.Context, tenant *domain.Tenant, lead *domain.Lead) error {
	payload := leadPayload{
		TenantID:    tenant.ID,
		TenantName:  tenant.Name,
		LeadID:      lead.ID,
		Name:        lead.Name,
		Email:       lead.Email,
		Phone:       lead.Phone,
		Company:     lead.Company,
		Score:       lead.Score,
		Temperature: string(domain.Temperature(lead.Score)),
		Source:      lead.Source,
		CapturedAt:  lead.CreatedAt.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("lead webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lead webhook returned status %d", resp.StatusCode)
	}
	return nil
}
