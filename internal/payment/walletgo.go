package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Walletgo is the redirect-based wallet provider. The customer approves the
// payment inside the wallet app; approval arrives via webhook.
type Walletgo struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewWalletgo(baseURL, apiKey, webhookSecret string, timeout time.Duration) *Walletgo {
	return &Walletgo{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: timeout},
	}
}

func (w *Walletgo) Name() string { return "walletgo" }

func (w *Walletgo) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	payload := map[string]any{
		"total":    req.Amount,
		"currency": req.Currency,
		"merchant_reference": map[string]string{
			"order_id": req.OrderID,
		},
		"items": req.Items,
	}
	var resp struct {
		SessionID   string `json:"session_id"`
		ApprovalURL string `json:"approval_url"`
	}
	if err := postJSON(ctx, w.client, w.baseURL+"/api/sessions", w.apiKey, req.IdempotencyKey, payload, &resp); err != nil {
		return nil, fmt.Errorf("walletgo session creation: %w", err)
	}
	return &Session{ID: resp.SessionID, RedirectURL: resp.ApprovalURL}, nil
}

func (w *Walletgo) VerifyWebhook(body []byte, header http.Header) error {
	return verifySignature(w.webhookSecret, header.Get("X-Walletgo-Signature"), body)
}

func (w *Walletgo) ParseEvent(body []byte) (*ProviderEvent, error) {
	var ev struct {
		EventID   string `json:"event_id"`
		Event     string `json:"event"`
		SessionID string `json:"session_id"`
		Metadata  struct {
			OrderID string `json:"order_id"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("walletgo: failed to parse webhook payload: %w", err)
	}

	out := &ProviderEvent{
		Provider:  w.Name(),
		RemoteID:  ev.EventID,
		Type:      ev.Event,
		OrderID:   ev.Metadata.OrderID,
		SessionID: ev.SessionID,
	}
	switch ev.Event {
	case "payment.approved", "payment.completed":
		out.Class = EventPaymentApproved
	default:
		out.Class = EventUnknown
	}
	return out, nil
}
