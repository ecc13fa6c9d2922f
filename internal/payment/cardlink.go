package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Cardlink is the card-payment provider: sessions resolve to a hosted
// checkout redirect URL and confirmation arrives via webhook.
type Cardlink struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewCardlink(baseURL, apiKey, webhookSecret string, timeout time.Duration) *Cardlink {
	return &Cardlink{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: timeout},
	}
}

func (c *Cardlink) Name() string { return "cardlink" }

func (c *Cardlink) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	payload := map[string]any{
		"amount":         req.Amount,
		"currency":       req.Currency,
		"order_id":       req.OrderID,
		"line_items":     req.Items,
		"customer_email": req.CustomerEmail,
	}
	var resp struct {
		ID          string `json:"id"`
		RedirectURL string `json:"redirect_url"`
	}
	if err := postJSON(ctx, c.client, c.baseURL+"/v1/checkout/sessions", c.apiKey, req.IdempotencyKey, payload, &resp); err != nil {
		return nil, fmt.Errorf("cardlink session creation: %w", err)
	}
	return &Session{ID: resp.ID, RedirectURL: resp.RedirectURL}, nil
}

func (c *Cardlink) VerifyWebhook(body []byte, header http.Header) error {
	return verifySignature(c.webhookSecret, header.Get("X-Cardlink-Signature"), body)
}

func (c *Cardlink) ParseEvent(body []byte) (*ProviderEvent, error) {
	var ev struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			SessionID string `json:"session_id"`
			OrderID   string `json:"order_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("cardlink: failed to parse webhook payload: %w", err)
	}

	out := &ProviderEvent{
		Provider:  c.Name(),
		RemoteID:  ev.ID,
		Type:      ev.Type,
		OrderID:   ev.Data.OrderID,
		SessionID: ev.Data.SessionID,
	}
	switch ev.Type {
	case "checkout.session.completed", "payment.captured":
		out.Class = EventPaymentApproved
	default:
		out.Class = EventUnknown
	}
	return out, nil
}
