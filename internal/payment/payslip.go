package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
)

// Payslip is the deferred-payment provider: instead of a redirect, the
// customer receives an entity/reference pair (and barcode) to pay through a
// separate channel. Instructions can arrive both from session creation and
// from a later webhook; funds confirmation always arrives via webhook.
type Payslip struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewPayslip(baseURL, apiKey, webhookSecret string, timeout time.Duration) *Payslip {
	return &Payslip{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: timeout},
	}
}

func (p *Payslip) Name() string { return "payslip" }

func (p *Payslip) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	payload := map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"order_id": req.OrderID,
	}
	var resp struct {
		SlipID    string `json:"slip_id"`
		Entity    string `json:"entity"`
		Reference string `json:"reference"`
		Barcode   string `json:"barcode"`
	}
	if err := postJSON(ctx, p.client, p.baseURL+"/v1/slips", p.apiKey, req.IdempotencyKey, payload, &resp); err != nil {
		return nil, fmt.Errorf("payslip session creation: %w", err)
	}

	sess := &Session{ID: resp.SlipID}
	if resp.Reference != "" || resp.Barcode != "" {
		sess.Instruction = &entity.PaymentInstruction{
			Provider:  p.Name(),
			Method:    "payslip",
			Entity:    resp.Entity,
			Reference: resp.Reference,
			Barcode:   resp.Barcode,
			IssuedAt:  time.Now(),
		}
	}
	return sess, nil
}

func (p *Payslip) VerifyWebhook(body []byte, header http.Header) error {
	return verifySignature(p.webhookSecret, header.Get("X-Payslip-Signature"), body)
}

func (p *Payslip) ParseEvent(body []byte) (*ProviderEvent, error) {
	var ev struct {
		EventID   string `json:"event_id"`
		Type      string `json:"type"`
		SlipID    string `json:"slip_id"`
		OrderID   string `json:"order_id"`
		Entity    string `json:"entity"`
		Reference string `json:"reference"`
		Barcode   string `json:"barcode"`
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("payslip: failed to parse webhook payload: %w", err)
	}

	out := &ProviderEvent{
		Provider:  p.Name(),
		RemoteID:  ev.EventID,
		Type:      ev.Type,
		OrderID:   ev.OrderID,
		SessionID: ev.SlipID,
		Method:    "payslip",
	}
	switch ev.Type {
	case "slip.issued":
		out.Class = EventReferenceIssued
		out.Instruction = &entity.PaymentInstruction{
			Provider:  p.Name(),
			Method:    "payslip",
			Entity:    ev.Entity,
			Reference: ev.Reference,
			Barcode:   ev.Barcode,
			IssuedAt:  time.Now(),
		}
	case "slip.paid":
		out.Class = EventPaymentApproved
	default:
		out.Class = EventUnknown
	}
	return out, nil
}
