package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/EduardooSodre/zarife-sub000/internal/entity"
)

var (
	// ErrUnsupportedCurrency is returned when a provider refuses the
	// order's settlement currency; the initiator may retry once with the
	// configured fallback currency.
	ErrUnsupportedCurrency = errors.New("unsupported settlement currency")
	// ErrBadSignature is returned when a webhook payload fails
	// authenticity verification.
	ErrBadSignature = errors.New("webhook signature verification failed")
	// ErrProviderUnavailable wraps network and remote-side failures while
	// talking to a provider.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// EventClass is the closed internal taxonomy a provider's webhook event is
// mapped into. Anything a provider sends that does not map stays
// EventUnknown and is logged loudly instead of being silently dropped.
type EventClass int

const (
	EventUnknown EventClass = iota
	EventReferenceIssued
	EventPaymentApproved
)

func (c EventClass) String() string {
	switch c {
	case EventReferenceIssued:
		return "reference_issued"
	case EventPaymentApproved:
		return "payment_approved"
	}
	return "unknown"
}

// SessionItem is one display line sent to the provider.
type SessionItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// SessionRequest carries the validated amount for a remote payment session.
// The idempotency key is derived from the internal order id so a retried
// client request cannot open a duplicate remote session.
type SessionRequest struct {
	OrderID        string
	IdempotencyKey string
	Amount         int64
	Currency       string
	Items          []SessionItem
	CustomerEmail  string
}

// Session is the provider's answer: a redirect URL for card/wallet flows,
// or immediate payment instructions for deferred methods.
type Session struct {
	ID          string
	RedirectURL string
	Instruction *entity.PaymentInstruction
}

// ProviderEvent is a verified, parsed webhook notification.
type ProviderEvent struct {
	Provider    string
	RemoteID    string
	Type        string
	Class       EventClass
	OrderID     string
	SessionID   string
	Method      string
	Instruction *entity.PaymentInstruction
}

// Provider is one external payment network adapter.
type Provider interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	VerifyWebhook(body []byte, header http.Header) error
	ParseEvent(body []byte) (*ProviderEvent, error)
}

// Registry holds the configured provider adapters keyed by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}

// Sign computes the hex HMAC-SHA256 signature the providers attach to
// webhook payloads. Exported for tests and fake providers.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret, signature string, body []byte) error {
	if signature == "" {
		return fmt.Errorf("%w: missing signature header", ErrBadSignature)
	}
	if !hmac.Equal([]byte(Sign(secret, body)), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// postJSON performs one provider API call. The client's timeout bounds the
// attempt; there is no retry loop here.
func postJSON(ctx context.Context, client *http.Client, url, apiKey, idempotencyKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrProviderUnavailable, err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error == "unsupported_currency" {
			return ErrUnsupportedCurrency
		}
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, respBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrProviderUnavailable, err)
	}
	return nil
}
